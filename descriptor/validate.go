package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var cssLength = regexp.MustCompile(`^(\d+(?:\.\d+)?)(px|em|rem)$`)

// Severity grades a diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one validation finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// ValidationResult splits findings into blocking errors and warnings.
type ValidationResult struct {
	Warnings []Diagnostic `json:"warnings"`
	Errors   []Diagnostic `json:"errors"`
}

// OK reports whether there are no hard errors.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the hard errors, or returns nil.
func (r ValidationResult) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, d := range r.Errors {
		errs[i] = errors.New(d.Message)
	}
	return errors.Join(errs...)
}

func (r *ValidationResult) warn(field, format string, args ...any) {
	r.Warnings = append(r.Warnings, Diagnostic{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) fail(field, format string, args ...any) {
	r.Errors = append(r.Errors, Diagnostic{Severity: SeverityError, Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks d without touching it. The current content field is
// authoritative: a populated purge does not silence the empty-content warning.
// A nil descriptor is checked as an empty one.
func Validate(d *Descriptor) ValidationResult {
	if d == nil {
		d = &Descriptor{}
	}
	r := ValidationResult{Warnings: []Diagnostic{}, Errors: []Diagnostic{}}

	switch {
	case d.ColorMode == "":
		r.fail("colorMode", "colorMode is missing; expected %q or %q", ColorModeMedia, ColorModeClass)
	case !d.ColorMode.Valid():
		r.fail("colorMode", "colorMode %q is not one of %q, %q", d.ColorMode, ColorModeMedia, ColorModeClass)
	}

	if len(d.ContentPatterns) == 0 {
		r.warn("contentPatterns", "contentPatterns is empty")
	}
	checkPatterns(&r, "contentPatterns", d.ContentPatterns)

	if d.LegacyScanPatterns != nil {
		r.warn("legacyScanPatterns", "legacyScanPatterns (purge) is deprecated; run migrate to move it into contentPatterns")
		checkPatterns(&r, "legacyScanPatterns", d.LegacyScanPatterns)
	}

	checkBreakpoints(&r, d.Breakpoints)
	checkFontStacks(&r, d.FontStacks)

	for i, p := range d.Plugins {
		if strings.TrimSpace(p) == "" {
			r.fail(fmt.Sprintf("plugins[%d]", i), "plugin reference %d is blank", i)
		}
	}

	for _, key := range d.Ignored {
		r.warn(key, "key %q is not recognised and was ignored", key)
	}

	return r
}

func checkPatterns(r *ValidationResult, field string, patterns []string) {
	for i, p := range patterns {
		f := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(p) == "" {
			r.warn(f, "%s has a blank pattern", field)
			continue
		}
		if !doublestar.ValidatePattern(globPath(p)) {
			r.warn(f, "pattern %q is not a valid glob", p)
		}
	}
}

func checkBreakpoints(r *ValidationResult, bps *Ordered[string]) {
	type width struct {
		name  string
		value float64
		unit  string
		raw   string
	}
	var prev *width

	for _, name := range bps.Keys() {
		raw, _ := bps.Get(name)
		field := "breakpoints." + name
		if strings.TrimSpace(name) == "" {
			r.fail("breakpoints", "breakpoint name is blank")
			continue
		}
		if strings.TrimSpace(raw) == "" {
			r.fail(field, "breakpoint %q has no width", name)
			continue
		}
		m := cssLength.FindStringSubmatch(raw)
		if m == nil {
			r.warn(field, "breakpoint %q width %q is not a px, em or rem length", name, raw)
			continue
		}
		v, _ := strconv.ParseFloat(m[1], 64)
		cur := &width{name: name, value: v, unit: m[2], raw: raw}
		if prev != nil && prev.unit == cur.unit && cur.value <= prev.value {
			r.warn(field, "breakpoint %q (%s) is not wider than %q (%s)", cur.name, cur.raw, prev.name, prev.raw)
		}
		prev = cur
	}
}

func checkFontStacks(r *ValidationResult, stacks *Ordered[[]string]) {
	for _, role := range stacks.Keys() {
		stack, _ := stacks.Get(role)
		field := "fontStacks." + role
		if len(stack) == 0 {
			r.fail(field, "font stack %q has no families", role)
			continue
		}
		for i, family := range stack {
			if strings.TrimSpace(family) == "" {
				r.fail(field, "font stack %q entry %d is blank", role, i)
			}
		}
	}
}

// ValidateFiles resolves the content globs against fsys, the project root,
// and warns about patterns that match nothing. Negated and out-of-root
// patterns are skipped.
func ValidateFiles(d *Descriptor, fsys fs.FS) []Diagnostic {
	var out []Diagnostic
	if d == nil {
		return out
	}
	for i, p := range d.ContentPatterns {
		field := fmt.Sprintf("contentPatterns[%d]", i)
		if strings.HasPrefix(p, "!") || strings.TrimSpace(p) == "" {
			continue
		}
		g := globPath(p)
		if strings.HasPrefix(g, "../") || path.IsAbs(p) {
			out = append(out, Diagnostic{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf("pattern %q points outside the project root and was not checked", p)})
			continue
		}
		matches, err := doublestar.Glob(fsys, g)
		if err != nil {
			out = append(out, Diagnostic{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf("pattern %q: %v", p, err)})
			continue
		}
		if len(matches) == 0 {
			out = append(out, Diagnostic{Severity: SeverityWarning, Field: field, Message: fmt.Sprintf("pattern %q matches no files", p)})
		}
	}
	return out
}

// globPath turns a config glob into an fs.FS path.
func globPath(p string) string {
	return strings.TrimPrefix(strings.TrimSpace(p), "./")
}
