package descriptor

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullDescriptor() *Descriptor {
	ext := NewOrdered[any]()
	ext.Set("transitionDuration", map[string]any{"500": "500ms"})
	ext.Set("zIndex", map[string]any{"60": 60})
	ext.Set("aspectRatio", []any{"4 / 3", true})
	ext.Set("note", "it's \"quoted\"\nand multi-line")

	return &Descriptor{
		ContentPatterns:    []string{"./*.html", "./src/**/*.{vue,js,ts,jsx,tsx}"},
		LegacyScanPatterns: []string{},
		ColorMode:          ColorModeClass,
		Breakpoints:        repoBreakpoints(),
		FontStacks:         repoFontStacks(),
		ThemeExtensions:    ext,
		Plugins:            []string{"@tailwindcss/forms", "./plugins/grid.js"},
	}
}

func TestRoundTrip(t *testing.T) {
	descriptors := map[string]*Descriptor{
		"full": fullDescriptor(),
		"minimal": {
			ColorMode: ColorModeMedia,
		},
		"empty lists": {
			ContentPatterns: []string{},
			ColorMode:       ColorModeMedia,
			Breakpoints:     NewOrdered[string](),
			Plugins:         []string{},
		},
	}

	for name, d := range descriptors {
		for _, format := range []Format{FormatJSON, FormatYAML, FormatJS} {
			t.Run(name+"/"+string(format), func(t *testing.T) {
				data, err := Marshal(d, format)
				require.NoError(t, err)

				got, err := Load(bytes.NewReader(data), format)
				require.NoError(t, err, "%s", data)
				assert.Equal(t, d, got)
			})
		}
	}
}

func TestRoundTripRepositoryFile(t *testing.T) {
	d, err := LoadFile(filepath.Join("testdata", "tailwind.config.js"))
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "tailwind.config.json")
	require.NoError(t, WriteFile(out, d))

	got, err := LoadFile(out)
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestMarshalKeepsBreakpointOrder(t *testing.T) {
	bp := NewOrdered[string]()
	bp.Set("xl", "1440px")
	bp.Set("sm", "480px")
	d := &Descriptor{ColorMode: ColorModeMedia, Breakpoints: bp}

	data, err := Marshal(d, FormatJSON)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(data), `"xl"`), strings.Index(string(data), `"sm"`))
}

func TestMarshalJSLayout(t *testing.T) {
	d, err := LoadFile(filepath.Join("testdata", "tailwind.config.js"))
	require.NoError(t, err)

	data, err := Marshal(d, FormatJS)
	require.NoError(t, err)

	js := string(data)
	assert.True(t, strings.HasPrefix(js, "/** @type {import('tailwindcss').Config} */\nexport default {\n"))
	assert.Contains(t, js, "  content: ['./*.html', './src/**/*.{vue,js,ts,jsx,tsx}'],\n")
	assert.Contains(t, js, "  darkMode: 'media',\n")
	assert.Contains(t, js, "      sans: ['Mona Sans', 'Graphik', 'sans-serif'],\n")
	assert.Contains(t, js, "    extend: {},\n")
	assert.Contains(t, js, "  plugins: [],\n")
}

func TestMarshalTOML(t *testing.T) {
	data, err := Marshal(fullDescriptor(), FormatTOML)
	require.NoError(t, err)

	toml := string(data)
	assert.Contains(t, toml, "darkMode = 'class'")
	assert.Contains(t, toml, "[theme.screens]")
	assert.Contains(t, toml, "sm = '480px'")
}

func TestMarshalUnknownFormat(t *testing.T) {
	_, err := Marshal(fullDescriptor(), Format("xml"))
	assert.Error(t, err)
}
