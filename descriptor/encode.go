package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var jsIdentifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// document is the persisted field layout. Pointers keep absent fields out
// of the output while still writing present-but-empty lists.
type document struct {
	Content  *[]string      `json:"content,omitempty" yaml:"content,omitempty"`
	Purge    *[]string      `json:"purge,omitempty" yaml:"purge,omitempty"`
	DarkMode ColorMode      `json:"darkMode,omitempty" yaml:"darkMode,omitempty"`
	Theme    *themeDocument `json:"theme,omitempty" yaml:"theme,omitempty"`
	Plugins  *[]string      `json:"plugins,omitempty" yaml:"plugins,omitempty"`
}

type themeDocument struct {
	Screens    *Ordered[string]   `json:"screens,omitempty" yaml:"screens,omitempty"`
	FontFamily *Ordered[[]string] `json:"fontFamily,omitempty" yaml:"fontFamily,omitempty"`
	Extend     *Ordered[any]      `json:"extend,omitempty" yaml:"extend,omitempty"`
}

func newDocument(d *Descriptor) document {
	doc := document{
		Content:  optionalList(d.ContentPatterns),
		Purge:    optionalList(d.LegacyScanPatterns),
		DarkMode: d.ColorMode,
		Plugins:  optionalList(d.Plugins),
	}
	if d.Breakpoints != nil || d.FontStacks != nil || d.ThemeExtensions != nil {
		doc.Theme = &themeDocument{
			Screens:    d.Breakpoints,
			FontFamily: d.FontStacks,
			Extend:     d.ThemeExtensions,
		}
	}
	return doc
}

func optionalList(s []string) *[]string {
	if s == nil {
		return nil
	}
	return &s
}

// Marshal serializes d. JSON, YAML and JS output load back into an equal
// descriptor; TOML is an export format.
func Marshal(d *Descriptor, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(newDocument(d), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(b, '\n'), nil
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(d)); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJS:
		return marshalJS(d), nil
	case FormatTOML:
		b, err := toml.Marshal(newTOMLDocument(d))
		if err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// WriteFile serializes d to path atomically, picking the format from the
// extension.
func WriteFile(path string, d *Descriptor) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := Marshal(d, format)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

type tomlDocument struct {
	Content  []string       `toml:"content,omitempty"`
	Purge    []string       `toml:"purge,omitempty"`
	DarkMode string         `toml:"darkMode,omitempty"`
	Plugins  []string       `toml:"plugins,omitempty"`
	Theme    map[string]any `toml:"theme,omitempty"`
}

func newTOMLDocument(d *Descriptor) tomlDocument {
	doc := tomlDocument{
		Content:  d.ContentPatterns,
		Purge:    d.LegacyScanPatterns,
		DarkMode: string(d.ColorMode),
		Plugins:  d.Plugins,
	}
	theme := make(map[string]any)
	if d.Breakpoints != nil {
		screens := make(map[string]string, d.Breakpoints.Len())
		for _, k := range d.Breakpoints.Keys() {
			screens[k], _ = d.Breakpoints.Get(k)
		}
		theme["screens"] = screens
	}
	if d.FontStacks != nil {
		fonts := make(map[string][]string, d.FontStacks.Len())
		for _, k := range d.FontStacks.Keys() {
			fonts[k], _ = d.FontStacks.Get(k)
		}
		theme["fontFamily"] = fonts
	}
	if d.ThemeExtensions != nil {
		extend := make(map[string]any, d.ThemeExtensions.Len())
		for _, k := range d.ThemeExtensions.Keys() {
			// TOML has no null
			if v, _ := d.ThemeExtensions.Get(k); v != nil {
				extend[k] = v
			}
		}
		theme["extend"] = extend
	}
	if len(theme) > 0 {
		doc.Theme = theme
	}
	return doc
}

// marshalJS writes d as an ES module in the layout the build tool expects.
func marshalJS(d *Descriptor) []byte {
	var b strings.Builder
	b.WriteString("/** @type {import('tailwindcss').Config} */\n")
	b.WriteString("export default {\n")

	if d.ContentPatterns != nil {
		writeJSField(&b, 1, "content", jsStringList(d.ContentPatterns))
	}
	if d.LegacyScanPatterns != nil {
		writeJSField(&b, 1, "purge", jsStringList(d.LegacyScanPatterns))
	}
	if d.ColorMode != "" {
		writeJSField(&b, 1, "darkMode", jsString(string(d.ColorMode)))
	}
	if d.Breakpoints != nil || d.FontStacks != nil || d.ThemeExtensions != nil {
		b.WriteString("  theme: {\n")
		if d.Breakpoints != nil {
			writeJSObject(&b, 2, "screens", d.Breakpoints.Keys(), func(k string) string {
				v, _ := d.Breakpoints.Get(k)
				return jsString(v)
			})
		}
		if d.FontStacks != nil {
			writeJSObject(&b, 2, "fontFamily", d.FontStacks.Keys(), func(k string) string {
				v, _ := d.FontStacks.Get(k)
				return jsStringList(v)
			})
		}
		if d.ThemeExtensions != nil {
			writeJSObject(&b, 2, "extend", d.ThemeExtensions.Keys(), func(k string) string {
				v, _ := d.ThemeExtensions.Get(k)
				return jsValue(v, 3)
			})
		}
		b.WriteString("  },\n")
	}
	if d.Plugins != nil {
		refs := make([]string, len(d.Plugins))
		for i, p := range d.Plugins {
			refs[i] = "require(" + jsString(p) + ")"
		}
		writeJSField(&b, 1, "plugins", "["+strings.Join(refs, ", ")+"]")
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

func writeJSField(b *strings.Builder, depth int, key, value string) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(jsKey(key))
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString(",\n")
}

func writeJSObject(b *strings.Builder, depth int, key string, keys []string, value func(string) string) {
	indent := strings.Repeat("  ", depth)
	if len(keys) == 0 {
		b.WriteString(indent + jsKey(key) + ": {},\n")
		return
	}
	b.WriteString(indent + jsKey(key) + ": {\n")
	for _, k := range keys {
		writeJSField(b, depth+1, k, value(k))
	}
	b.WriteString(indent + "},\n")
}

func jsKey(k string) string {
	if jsIdentifier.MatchString(k) {
		return k
	}
	return jsString(k)
}

func jsString(s string) string {
	if !strings.ContainsAny(s, "'\\\n\r\t") && strconv.CanBackquote(s) {
		return "'" + s + "'"
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStringList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = jsString(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func jsValue(v any, depth int) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return jsString(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return "null"
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = jsValue(e, depth+1)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		if len(t) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("{\n")
		for _, k := range keys {
			writeJSField(&b, depth+1, k, jsValue(t[k], depth+1))
		}
		b.WriteString(strings.Repeat("  ", depth) + "}")
		return b.String()
	default:
		return jsString(fmt.Sprint(t))
	}
}
