// Package descriptor models the configuration file of a CSS utility
// framework: content globs, dark-mode strategy, breakpoints, font stacks,
// theme extensions and plugins. It loads the persisted forms (JS module,
// JSON, YAML), validates them, merges overlays and migrates the deprecated
// purge field to content.
package descriptor

import (
	"fmt"
	"slices"
)

// ColorMode selects how dark-mode styles are activated.
type ColorMode string

const (
	ColorModeMedia ColorMode = "media"
	ColorModeClass ColorMode = "class"
)

// Valid reports whether m is one of the supported strategies.
func (m ColorMode) Valid() bool {
	return m == ColorModeMedia || m == ColorModeClass
}

// SchemaVersion tells which scan-pattern field naming a descriptor uses.
type SchemaVersion int

const (
	// SchemaCurrent uses content only.
	SchemaCurrent SchemaVersion = iota
	// SchemaLegacy still carries the deprecated purge field.
	SchemaLegacy
)

func (v SchemaVersion) String() string {
	switch v {
	case SchemaLegacy:
		return "legacy"
	case SchemaCurrent:
		return "current"
	default:
		return fmt.Sprintf("schema(%d)", int(v))
	}
}

// MarshalText lets the schema appear by name in JSON output.
func (v SchemaVersion) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Descriptor is the in-memory form of a configuration file.
//
// A nil slice or map means the field was absent from the source. An empty
// non-nil value means it was present and empty; the distinction matters to
// Merge and MigrateLegacy.
type Descriptor struct {
	// ContentPatterns are the globs of the current content field.
	ContentPatterns []string
	// LegacyScanPatterns are the globs of the deprecated purge field.
	LegacyScanPatterns []string
	ColorMode          ColorMode
	Breakpoints        *Ordered[string]
	FontStacks         *Ordered[[]string]
	ThemeExtensions    *Ordered[any]
	Plugins            []string

	// Ignored lists source keys that were skipped on load, such as
	// "theme.colors". It is never serialized.
	Ignored []string
}

// Schema returns SchemaLegacy when the deprecated purge field is present.
func (d *Descriptor) Schema() SchemaVersion {
	if d.LegacyScanPatterns != nil {
		return SchemaLegacy
	}
	return SchemaCurrent
}

// Clone returns a deep copy of d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	return &Descriptor{
		ContentPatterns:    cloneStrings(d.ContentPatterns),
		LegacyScanPatterns: cloneStrings(d.LegacyScanPatterns),
		ColorMode:          d.ColorMode,
		Breakpoints:        d.Breakpoints.Clone(nil),
		FontStacks:         d.FontStacks.Clone(cloneStrings),
		ThemeExtensions:    d.ThemeExtensions.Clone(cloneValue),
		Plugins:            cloneStrings(d.Plugins),
		Ignored:            cloneStrings(d.Ignored),
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

// cloneValue deep-copies the generic values held in theme extensions.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// samePatternSet reports whether a and b name the same globs, ignoring order
// and repeats.
func samePatternSet(a, b []string) bool {
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(slices.Compact(as), slices.Compact(bs))
}
