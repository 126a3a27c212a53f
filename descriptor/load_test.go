package descriptor

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoBreakpoints() *Ordered[string] {
	bp := NewOrdered[string]()
	bp.Set("sm", "480px")
	bp.Set("md", "768px")
	bp.Set("lg", "976px")
	bp.Set("xl", "1440px")
	return bp
}

func repoFontStacks() *Ordered[[]string] {
	fonts := NewOrdered[[]string]()
	fonts.Set("sans", []string{"Mona Sans", "Graphik", "sans-serif"})
	fonts.Set("serif", []string{"Merriweather", "serif"})
	return fonts
}

func TestLoadFileCurrentVariant(t *testing.T) {
	d, err := LoadFile(filepath.Join("testdata", "tailwind.config.js"))
	require.NoError(t, err)

	assert.Equal(t, []string{"./*.html", "./src/**/*.{vue,js,ts,jsx,tsx}"}, d.ContentPatterns)
	assert.Nil(t, d.LegacyScanPatterns)
	assert.Equal(t, ColorModeMedia, d.ColorMode)
	assert.Equal(t, repoBreakpoints(), d.Breakpoints)
	assert.Equal(t, repoFontStacks(), d.FontStacks)
	assert.Equal(t, 0, d.ThemeExtensions.Len())
	assert.Equal(t, []string{}, d.Plugins)
	assert.Empty(t, d.Ignored)
	assert.Equal(t, SchemaCurrent, d.Schema())
}

func TestLoadFileLegacyVariant(t *testing.T) {
	d, err := LoadFile(filepath.Join("testdata", "legacy.config.js"))
	require.NoError(t, err)

	assert.Equal(t, []string{}, d.ContentPatterns)
	assert.Equal(t, []string{"./index.html", "./home.html", "./src/**/*.{vue,js,ts,jsx,tsx}"}, d.LegacyScanPatterns)
	assert.Equal(t, ColorModeMedia, d.ColorMode)
	assert.Equal(t, SchemaLegacy, d.Schema())

	res := Validate(d)
	assert.True(t, res.OK())
	assert.Contains(t, messages(res.Warnings), "contentPatterns is empty")
}

func TestLoadFileTypeScriptVariable(t *testing.T) {
	d, err := LoadFile(filepath.Join("testdata", "typed.config.ts"))
	require.NoError(t, err)

	assert.Equal(t, []string{"./app/**/*.{ts,tsx}"}, d.ContentPatterns)
	assert.Equal(t, ColorModeClass, d.ColorMode)
	assert.Equal(t, []string{"@tailwindcss/typography"}, d.Plugins)

	spacing, ok := d.ThemeExtensions.Get("spacing")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"128": "32rem"}, spacing)
}

func TestLoadDuplicateBreakpoint(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "duplicate.config.js"))
	require.Error(t, err)

	var dup *DuplicateKeyError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "theme.screens", dup.Field)
	assert.Equal(t, "sm", dup.Key)
	assert.Equal(t, 6, dup.Line)
	assert.Equal(t, 5, dup.FirstLine)
}

func TestLoadDuplicateKeys(t *testing.T) {
	cases := map[string]struct {
		format Format
		src    string
		field  string
	}{
		"json screens": {
			format: FormatJSON,
			src:    `{"darkMode":"media","theme":{"screens":{"sm":"480px","md":"768px","sm":"640px"}}}`,
			field:  "theme.screens",
		},
		"yaml fonts": {
			format: FormatYAML,
			src:    "darkMode: class\ntheme:\n  fontFamily:\n    sans: [Inter]\n    sans: [Graphik]\n",
			field:  "theme.fontFamily",
		},
		"js extend": {
			format: FormatJS,
			src:    "module.exports = { darkMode: 'class', theme: { extend: { spacing: {}, spacing: {} } } }",
			field:  "theme.extend",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := Load(strings.NewReader(tc.src), tc.format)
			assert.Nil(t, d)
			var dup *DuplicateKeyError
			require.True(t, errors.As(err, &dup), "got %v", err)
			assert.Equal(t, tc.field, dup.Field)
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	cases := map[string]struct {
		format Format
		src    string
		field  string
	}{
		"missing darkMode":     {FormatJSON, `{"content":["./*.html"]}`, "darkMode"},
		"unknown darkMode":     {FormatJSON, `{"darkMode":"selector"}`, "darkMode"},
		"darkMode false":       {FormatJS, `module.exports = { darkMode: false }`, "darkMode"},
		"darkMode tuple":       {FormatJS, `module.exports = { darkMode: ['class', '.dark'] }`, "darkMode"},
		"content not a list":   {FormatYAML, "darkMode: media\ncontent: ./src\n", "content"},
		"screen as object":     {FormatYAML, "darkMode: media\ntheme:\n  screens:\n    sm: {min: 480px}\n", "theme.screens.sm"},
		"plugin as object":     {FormatJSON, `{"darkMode":"media","plugins":[{"name":"forms"}]}`, "plugins[0]"},
		"top level list":       {FormatJSON, `["darkMode"]`, ""},
		"empty document":       {FormatYAML, "   \n", ""},
		"template literal":     {FormatJS, "export default { darkMode: `media` }", ""},
		"no exported object":   {FormatJS, "const x = 1", ""},
		"spread":               {FormatJS, "export default { darkMode: 'media', theme: { screens: { ...base } } }", "theme.screens"},
		"unterminated comment": {FormatJS, "/* export default {}", ""},
		"spread in list":       {FormatJS, "export default { content: ['./src/**/*.vue', ...extraGlobs], darkMode: 'media' }", "content[1]"},
		"spread in font stack": {FormatJS, "export default { darkMode: 'media', theme: { fontFamily: { sans: ['Inter', ...defaultTheme.fontFamily.sans] } } }", "theme.fontFamily.sans[1]"},
		"member access":        {FormatJS, "export default { darkMode: 'media', theme: { extend: { colors: { primary: colors.blue } } } }", "theme.extend.colors.primary"},
		"identifier darkMode":  {FormatJS, "const mode = 'class'\nexport default { darkMode: mode }", "darkMode"},
		"identifier plugin":    {FormatJS, "module.exports = { darkMode: 'class', plugins: [forms] }", "plugins[0]"},
		"require outside list": {FormatJS, "export default { darkMode: 'media', theme: { screens: { sm: require('./sm') } } }", "theme.screens.sm"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := Load(strings.NewReader(tc.src), tc.format)
			assert.Nil(t, d)
			var mal *MalformedConfigError
			require.True(t, errors.As(err, &mal), "got %v", err)
			assert.Equal(t, tc.field, mal.Field)
		})
	}
}

func TestLoadJSLiteralValues(t *testing.T) {
	src := `export default {
  content: ['./src/**/*.html'],
  darkMode: 'class',
  theme: {
    extend: { lineHeight: { tight: 1.25 }, zIndex: { top: 50 }, flags: { enabled: true, missing: null } },
  },
  plugins: [require('@tailwindcss/forms'), '@tailwindcss/typography'],
}`
	d, err := Parse([]byte(src), FormatJS)
	require.NoError(t, err)
	assert.Equal(t, []string{"@tailwindcss/forms", "@tailwindcss/typography"}, d.Plugins)
	lh, _ := d.ThemeExtensions.Get("lineHeight")
	assert.Equal(t, map[string]any{"tight": 1.25}, lh)

	// plain YAML strings are not JS identifiers
	d, err = Parse([]byte("darkMode: media\ncontent: [./src/**/*.vue, ...legacy]\n"), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, []string{"./src/**/*.vue", "...legacy"}, d.ContentPatterns)
}

func TestLoadAcceptsAlternateShapes(t *testing.T) {
	src := `
darkMode: class
content:
  files: [./src/**/*.html]
  relative: true
purge:
  enabled: true
  content: [./legacy/**/*.html]
theme:
  fontFamily:
    display: "Oswald, 'Bebas Neue', sans-serif"
  colors:
    brand: "#ff5a2d"
prefix: tw-
`
	d, err := Load(strings.NewReader(src), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, []string{"./src/**/*.html"}, d.ContentPatterns)
	assert.Equal(t, []string{"./legacy/**/*.html"}, d.LegacyScanPatterns)
	stack, _ := d.FontStacks.Get("display")
	assert.Equal(t, []string{"Oswald", "Bebas Neue", "sans-serif"}, stack)
	assert.Equal(t, []string{"content.relative", "purge.enabled", "theme.colors", "prefix"}, d.Ignored)
}

func TestLoadOverlayAllowsMissingDarkMode(t *testing.T) {
	d, err := LoadOverlayFile(filepath.Join("testdata", "overlay.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ColorMode(""), d.ColorMode)
	assert.Equal(t, []string{"xl", "2xl"}, d.Breakpoints.Keys())

	_, err = LoadFile(filepath.Join("testdata", "overlay.yaml"))
	var mal *MalformedConfigError
	assert.True(t, errors.As(err, &mal))
}

func TestLoadTOMLUnsupported(t *testing.T) {
	_, err := Load(strings.NewReader(`darkMode = "media"`), FormatTOML)
	assert.Error(t, err)
}

func TestDiscover(t *testing.T) {
	p, err := Discover("testdata")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "tailwind.config.js"), p)

	_, err = Discover(t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
}

func messages(ds []Diagnostic) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message
	}
	return out
}
