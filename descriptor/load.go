package descriptor

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	yamlLine    = regexp.MustCompile(`line (\d+)`)
	requireCall = regexp.MustCompile(`^require\(\s*["'](.+)["']\s*\)$`)
)

type loadOptions struct {
	// partial allows darkMode to be absent, for merge overlays.
	partial bool
}

// Load parses a persisted descriptor. Both the legacy shape (purge plus an
// empty content list) and the current shape are accepted. On error no
// descriptor is returned.
func Load(r io.Reader, format Format) (*Descriptor, error) {
	return load(r, format, loadOptions{})
}

// LoadOverlay is Load without the darkMode requirement. Use it for files that
// only carry the fields they override.
func LoadOverlay(r io.Reader, format Format) (*Descriptor, error) {
	return load(r, format, loadOptions{partial: true})
}

// LoadFile loads the descriptor at path, picking the format from its extension.
func LoadFile(path string) (*Descriptor, error) {
	return loadFile(path, loadOptions{})
}

// LoadOverlayFile is LoadOverlay for a file path.
func LoadOverlayFile(path string) (*Descriptor, error) {
	return loadFile(path, loadOptions{partial: true})
}

// Parse is Load for an in-memory document.
func Parse(data []byte, format Format) (*Descriptor, error) {
	return parse(data, format, loadOptions{})
}

func loadFile(path string, opts loadOptions) (*Descriptor, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	d, err := parse(data, format, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func load(r io.Reader, format Format, opts loadOptions) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parse(data, format, opts)
}

func parse(data []byte, format Format, opts loadOptions) (*Descriptor, error) {
	switch format {
	case FormatJS:
		normalized, err := normalizeJS(data)
		if err != nil {
			return nil, err
		}
		data = normalized
	case FormatJSON, FormatYAML:
	case FormatTOML:
		return nil, fmt.Errorf("loading %s configs is not supported", format)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformed("", 0, "document is empty")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, yamlError(err)
	}
	if len(doc.Content) == 0 {
		return nil, malformed("", 0, "document is empty")
	}
	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, malformed("", root.Line, "top level must be an object, got %s", kindName(root))
	}

	if format == FormatJS {
		if err := checkJSValues("", root, false); err != nil {
			return nil, err
		}
	}

	d := &Descriptor{}
	if err := decodeRoot(d, root); err != nil {
		return nil, err
	}
	if !opts.partial && d.ColorMode == "" {
		return nil, malformed("darkMode", 0, "darkMode is required and must be %q or %q", ColorModeMedia, ColorModeClass)
	}
	return d, nil
}

func decodeRoot(d *Descriptor, root *yaml.Node) error {
	pairs, err := mappingPairs("", root)
	if err != nil {
		return err
	}

	for _, p := range pairs {
		switch p.key.Value {
		case "content":
			d.ContentPatterns, err = decodeContent(p.value, &d.Ignored)
		case "purge":
			d.LegacyScanPatterns, err = decodePurge(p.value, &d.Ignored)
		case "darkMode":
			d.ColorMode, err = decodeColorMode(p.value)
		case "theme":
			err = decodeTheme(d, p.value)
		case "plugins":
			d.Plugins, err = decodePlugins(p.value)
		default:
			d.Ignored = append(d.Ignored, p.key.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// checkJSValues rejects values a JS module computes at runtime. normalizeJS
// double quotes every string literal, so a plain scalar in value position
// that is not a number, boolean or null is an identifier, member access,
// call or spread. require calls are allowed in the top-level plugins list.
func checkJSValues(field string, n *yaml.Node, allowRequire bool) error {
	n = resolve(n)
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := resolve(n.Content[i]).Value
			child := key
			if field != "" {
				child = field + "." + key
			}
			if err := checkJSValues(child, n.Content[i+1], field == "" && key == "plugins"); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			if err := checkJSValues(fmt.Sprintf("%s[%d]", field, i), item, allowRequire); err != nil {
				return err
			}
		}
	case yaml.ScalarNode:
		if n.Style != 0 {
			return nil
		}
		switch n.Tag {
		case "!!int", "!!float", "!!bool", "!!null":
			return nil
		}
		if allowRequire && requireCall.MatchString(strings.TrimSpace(n.Value)) {
			return nil
		}
		if strings.HasPrefix(n.Value, "...") {
			return malformed(field, n.Line, "spread %s is not supported", n.Value)
		}
		return malformed(field, n.Line, "computed value %s is not supported; use a literal", n.Value)
	}
	return nil
}

func decodeContent(n *yaml.Node, ignored *[]string) ([]string, error) {
	if n.Kind != yaml.MappingNode {
		return decodeStrings("content", n)
	}

	pairs, err := mappingPairs("content", n)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range pairs {
		if p.key.Value != "files" {
			*ignored = append(*ignored, "content."+p.key.Value)
			continue
		}
		if files, err = decodeStrings("content.files", p.value); err != nil {
			return nil, err
		}
	}
	if files == nil {
		return nil, malformed("content", n.Line, "content object needs a files list")
	}
	return files, nil
}

// decodePurge reads the deprecated field, either a glob list or an object
// whose content key holds the list.
func decodePurge(n *yaml.Node, ignored *[]string) ([]string, error) {
	if n.Kind != yaml.MappingNode {
		return decodeStrings("purge", n)
	}

	pairs, err := mappingPairs("purge", n)
	if err != nil {
		return nil, err
	}
	patterns := []string{}
	for _, p := range pairs {
		if p.key.Value != "content" {
			*ignored = append(*ignored, "purge."+p.key.Value)
			continue
		}
		if patterns, err = decodeStrings("purge.content", p.value); err != nil {
			return nil, err
		}
	}
	return patterns, nil
}

func decodeColorMode(n *yaml.Node) (ColorMode, error) {
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", malformed("darkMode", n.Line, "expected %q or %q, got %s", ColorModeMedia, ColorModeClass, kindName(n))
	}
	mode := ColorMode(n.Value)
	if !mode.Valid() {
		return "", malformed("darkMode", n.Line, "expected %q or %q, got %q", ColorModeMedia, ColorModeClass, n.Value)
	}
	return mode, nil
}

func decodeTheme(d *Descriptor, n *yaml.Node) error {
	pairs, err := mappingPairs("theme", n)
	if err != nil {
		return err
	}

	for _, p := range pairs {
		switch p.key.Value {
		case "screens":
			d.Breakpoints, err = decodeBreakpoints(p.value)
		case "fontFamily":
			d.FontStacks, err = decodeFontStacks(p.value)
		case "extend":
			d.ThemeExtensions, err = decodeExtensions(p.value)
		default:
			d.Ignored = append(d.Ignored, "theme."+p.key.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func decodeBreakpoints(n *yaml.Node) (*Ordered[string], error) {
	pairs, err := mappingPairs("theme.screens", n)
	if err != nil {
		return nil, err
	}
	out := NewOrdered[string]()
	for _, p := range pairs {
		if p.value.Kind != yaml.ScalarNode || p.value.Tag == "!!null" {
			return nil, malformed("theme.screens."+p.key.Value, p.value.Line, "breakpoint must be a width string, got %s", kindName(p.value))
		}
		out.Set(p.key.Value, p.value.Value)
	}
	return out, nil
}

func decodeFontStacks(n *yaml.Node) (*Ordered[[]string], error) {
	pairs, err := mappingPairs("theme.fontFamily", n)
	if err != nil {
		return nil, err
	}
	out := NewOrdered[[]string]()
	for _, p := range pairs {
		field := "theme.fontFamily." + p.key.Value
		var stack []string
		switch {
		case p.value.Kind == yaml.ScalarNode && p.value.Tag != "!!null":
			stack = splitFontList(p.value.Value)
		default:
			if stack, err = decodeStrings(field, p.value); err != nil {
				return nil, err
			}
		}
		out.Set(p.key.Value, stack)
	}
	return out, nil
}

// splitFontList splits a CSS font-family value into its families.
func splitFontList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `"'`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func decodeExtensions(n *yaml.Node) (*Ordered[any], error) {
	pairs, err := mappingPairs("theme.extend", n)
	if err != nil {
		return nil, err
	}
	out := NewOrdered[any]()
	for _, p := range pairs {
		v, err := nodeValue("theme.extend."+p.key.Value, p.value)
		if err != nil {
			return nil, err
		}
		out.Set(p.key.Value, v)
	}
	return out, nil
}

func decodePlugins(n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, malformed("plugins", n.Line, "expected a list, got %s", kindName(n))
	}
	out := make([]string, 0, len(n.Content))
	for i, item := range n.Content {
		item = resolve(item)
		if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
			return nil, malformed(fmt.Sprintf("plugins[%d]", i), item.Line, "plugin must be a module reference, got %s", kindName(item))
		}
		out = append(out, pluginModule(item.Value))
	}
	return out, nil
}

// pluginModule reduces require('x') to x.
func pluginModule(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := requireCall.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

// nodeValue converts a node into plain Go values. Mapping keys are always
// strings and repeated keys are rejected at every depth.
func nodeValue(field string, n *yaml.Node) (any, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, malformed(field, n.Line, "%v", err)
		}
		return v, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := nodeValue(fmt.Sprintf("%s[%d]", field, i), item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		pairs, err := mappingPairs(field, n)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(pairs))
		for _, p := range pairs {
			v, err := nodeValue(field+"."+p.key.Value, p.value)
			if err != nil {
				return nil, err
			}
			out[p.key.Value] = v
		}
		return out, nil
	default:
		return nil, malformed(field, n.Line, "unsupported value")
	}
}

func decodeStrings(field string, n *yaml.Node) ([]string, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, malformed(field, n.Line, "expected a list of strings, got %s", kindName(n))
	}
	out := make([]string, 0, len(n.Content))
	for i, item := range n.Content {
		item = resolve(item)
		if item.Kind != yaml.ScalarNode || item.Tag == "!!null" {
			return nil, malformed(fmt.Sprintf("%s[%d]", field, i), item.Line, "expected a string, got %s", kindName(item))
		}
		out = append(out, item.Value)
	}
	return out, nil
}

type pair struct {
	key   *yaml.Node
	value *yaml.Node
}

// mappingPairs lists the entries of a mapping node, failing on repeated keys.
func mappingPairs(field string, n *yaml.Node) ([]pair, error) {
	if n.Kind != yaml.MappingNode {
		return nil, malformed(field, n.Line, "expected an object, got %s", kindName(n))
	}

	firstLine := make(map[string]int, len(n.Content)/2)
	pairs := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := resolve(n.Content[i]), resolve(n.Content[i+1])
		if k.Kind != yaml.ScalarNode {
			return nil, malformed(field, k.Line, "object keys must be plain names")
		}
		if strings.HasPrefix(k.Value, "...") {
			return nil, malformed(field, k.Line, "spread %s is not supported", k.Value)
		}
		if line, ok := firstLine[k.Value]; ok {
			where := field
			if where == "" {
				where = "top level"
			}
			return nil, &DuplicateKeyError{Field: where, Key: k.Value, Line: k.Line, FirstLine: line}
		}
		firstLine[k.Value] = k.Line
		pairs = append(pairs, pair{key: k, value: v})
	}
	return pairs, nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "an object"
	case yaml.SequenceNode:
		return "a list"
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "null"
		}
		return strconv.Quote(n.Value)
	default:
		return "an unsupported value"
	}
}

func yamlError(err error) error {
	msg := strings.TrimPrefix(err.Error(), "yaml: ")
	line := 0
	if m := yamlLine.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
		msg = strings.TrimPrefix(msg, m[0]+": ")
	}
	return malformed("", line, "%s", msg)
}
