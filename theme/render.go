// Package theme renders the descriptor's design tokens as CSS custom
// properties. It does not generate utility classes.
package theme

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"tailplane/descriptor"
)

// genericFamilies are CSS keywords that must stay unquoted.
var genericFamilies = map[string]bool{
	"serif": true, "sans-serif": true, "monospace": true, "cursive": true,
	"fantasy": true, "system-ui": true, "ui-serif": true, "ui-sans-serif": true,
	"ui-monospace": true, "ui-rounded": true, "emoji": true, "math": true,
	"fangsong": true, "inherit": true, "initial": true,
}

// Tokens lists the custom properties for d: breakpoints as --screen-*, font
// stacks as --font-*, then scalar theme extensions as --<group>-<key>.
func Tokens(d *descriptor.Descriptor) []Token {
	if d == nil {
		return nil
	}
	var out []Token
	for _, k := range d.Breakpoints.Keys() {
		v, _ := d.Breakpoints.Get(k)
		out = append(out, Token{Name: "--screen-" + ident(k), Value: cssValue(v)})
	}
	for _, k := range d.FontStacks.Keys() {
		stack, _ := d.FontStacks.Get(k)
		out = append(out, Token{Name: "--font-" + ident(k), Value: FontList(stack)})
	}
	for _, k := range d.ThemeExtensions.Keys() {
		v, _ := d.ThemeExtensions.Get(k)
		out = append(out, extensionTokens("--"+ident(k), v)...)
	}
	return out
}

func extensionTokens(prefix string, v any) []Token {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var out []Token
		for _, k := range keys {
			out = append(out, extensionTokens(prefix+"-"+ident(k), t[k])...)
		}
		return out
	case string:
		return []Token{{Name: prefix, Value: cssValue(t)}}
	case int, int64, float64:
		return []Token{{Name: prefix, Value: fmt.Sprint(t)}}
	default:
		// lists, booleans and nulls have no custom property form
		return nil
	}
}

// FontList renders a font stack as a font-family value.
func FontList(stack []string) string {
	parts := make([]string, 0, len(stack))
	for _, f := range stack {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if genericFamilies[strings.ToLower(f)] || isIdent(f) {
			parts = append(parts, f)
			continue
		}
		parts = append(parts, cssString(f))
	}
	return strings.Join(parts, ", ")
}

// cssEscaper escapes text for a double-quoted CSS string. Declaration and
// block delimiters become hex escapes so a value cannot end the rule.
var cssEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	";", `\3b `,
	"{", `\7b `,
	"}", `\7d `,
	"\n", `\a `,
	"\r", `\d `,
)

func cssString(s string) string {
	return `"` + cssEscaper.Replace(s) + `"`
}

// cssValue passes plain values through and quotes any value that could
// break out of the declaration.
func cssValue(v string) string {
	if strings.ContainsAny(v, ";{}\"\\\n\r") || strings.Contains(v, "/*") {
		return cssString(v)
	}
	return v
}

// RenderTokens renders d as a complete stylesheet with a metadata header.
func RenderTokens(d *descriptor.Descriptor, source string) string {
	if d == nil {
		d = &descriptor.Descriptor{}
	}
	tokens := Tokens(d)

	var body strings.Builder
	body.WriteString(":root {\n")
	for _, t := range tokens {
		fmt.Fprintf(&body, "  %s: %s;\n", t.Name, t.Value)
	}
	switch d.ColorMode {
	case descriptor.ColorModeMedia:
		body.WriteString("  color-scheme: light dark;\n}\n")
	case descriptor.ColorModeClass:
		body.WriteString("  color-scheme: light;\n}\n")
		body.WriteString(".dark {\n  color-scheme: dark;\n}\n")
	default:
		body.WriteString("}\n")
	}

	meta := SheetMetadata{
		Source:   source,
		Schema:   d.Schema().String(),
		Scheme:   string(d.ColorMode),
		Checksum: fmt.Sprintf("%016x", xxhash.Sum64String(body.String())),
	}

	var b strings.Builder
	b.WriteString("/*\n")
	if meta.Source != "" {
		fmt.Fprintf(&b, "  Source: %s\n", strings.ReplaceAll(meta.Source, "*/", "*\\/"))
	}
	fmt.Fprintf(&b, "  Schema: %s\n", meta.Schema)
	if meta.Scheme != "" {
		fmt.Fprintf(&b, "  Scheme: %s\n", meta.Scheme)
	}
	fmt.Fprintf(&b, "  Checksum: %s\n", meta.Checksum)
	b.WriteString("*/\n")
	b.WriteString(body.String())
	return b.String()
}

// ident lowercases k and replaces anything outside [a-z0-9-_] with '-'.
func ident(k string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(k) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func isIdent(s string) bool {
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}
