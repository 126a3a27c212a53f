package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailplane/config"
	"tailplane/descriptor"
	"tailplane/model"
	"tailplane/theme"
	"tailplane/ui"
)

func TestResolveDescriptor(t *testing.T) {
	cfg := config.Default()

	path, err := resolveDescriptor([]string{"a/tailwind.config.ts"}, cfg)
	require.NoError(t, err)
	assert.Equal(t, "a/tailwind.config.ts", path)

	cfg.DescriptorPath = "b/tailwind.config.js"
	path, err = resolveDescriptor(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "b/tailwind.config.js", path)
}

func TestCheckDescriptorResolvesGlobs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts"), []byte("x"), 0o644))

	d, err := descriptor.Parse([]byte(`{"content": ["./src/**/*.ts", "./pages/*.vue"], "darkMode": "class"}`), descriptor.FormatJSON)
	require.NoError(t, err)

	assert.Empty(t, checkDescriptor(d, "").Warnings)

	res := checkDescriptor(d, root)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "contentPatterns[1]", res.Warnings[0].Field)
}

func TestEmit(t *testing.T) {
	d, err := descriptor.Parse([]byte(`{"content": ["./*.html"], "darkMode": "media"}`), descriptor.FormatJSON)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, emit(&buf, d, "", "", "site/tailwind.config.yaml"))
	assert.Contains(t, buf.String(), "darkMode: media")

	buf.Reset()
	require.NoError(t, emit(&buf, d, "", "js", "site/tailwind.config.yaml"))
	assert.Contains(t, buf.String(), "export default {")

	assert.Error(t, emit(&buf, d, "", "ini", ""))

	target := filepath.Join(t.TempDir(), "out", "tailwind.config.json")
	require.NoError(t, emit(&buf, d, target, "", ""))
	back, err := descriptor.LoadFile(target)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestWriteTokensSkipsUnchanged(t *testing.T) {
	d, err := descriptor.Parse([]byte(`{"content": [], "darkMode": "class", "theme": {"screens": {"sm": "480px"}}}`), descriptor.FormatJSON)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "tokens.css")
	css := theme.RenderTokens(d, "tailwind.config.json")

	changed, err := writeTokens(path, css)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = writeTokens(path, css)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestPrintHistory(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	snaps := []model.Snapshot{
		{Timestamp: now.Add(-3 * time.Hour), Source: "/srv/tailwind.config.js", Checksum: "0123456789abcdef", Schema: "legacy"},
		{Timestamp: now.Add(-2 * time.Hour), Source: "/srv/tailwind.config.js", Checksum: "fedcba9876543210", LoadError: "malformed config"},
		{Timestamp: now.Add(-time.Hour), Source: "/srv/tailwind.config.js", Checksum: "aaaaaaaabbbbbbbb", Schema: "current"},
	}

	var buf bytes.Buffer
	printHistory(&buf, snaps, 2, now)
	out := buf.String()
	assert.Contains(t, out, "1 hour ago")
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "load failed: malformed config")
	assert.NotContains(t, out, "01234567")

	buf.Reset()
	printHistory(&buf, nil, 10, now)
	assert.Equal(t, "no snapshots recorded\n", buf.String())
}

func TestGuardRewriteKeepsUnknownKeys(t *testing.T) {
	ui.SetOutput(io.Discard)
	t.Cleanup(func() { ui.SetOutput(os.Stderr) })

	src := `module.exports = {
  important: true,
  content: [],
  purge: ['./index.html'],
  darkMode: 'media',
  theme: { colors: { brand: '#0af' }, screens: { sm: '480px' } },
  variants: { extend: {} },
  plugins: [],
}
`
	path := filepath.Join(t.TempDir(), "tailwind.config.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	d, err := descriptor.LoadFile(path)
	require.NoError(t, err)
	migrated, err := descriptor.MigrateLegacy(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"important", "theme.colors", "variants"}, migrated.Ignored)

	err = guardRewrite(migrated, path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "important, theme.colors, variants")
	assert.Contains(t, err.Error(), "--force")

	require.NoError(t, guardRewrite(migrated, path, true))

	clean, err := descriptor.Parse([]byte(`{"content": ["./a.html"], "darkMode": "class"}`), descriptor.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, guardRewrite(clean, "tailwind.config.json", false))
}

func TestPrepareEnvReadsDataDirFromDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TAILPLANE_DATA_DIR=/srv/tailplane-data\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(config.EnvDataDir, "")
	os.Unsetenv(config.EnvDataDir)

	prev := dataDir
	t.Cleanup(func() { dataDir = prev })

	dataDir = dir
	require.NoError(t, prepareEnv(&cobra.Command{}, nil))
	assert.Equal(t, "/srv/tailplane-data", dataDir)

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&dataDir, "data-dir", dir, "")
	require.NoError(t, cmd.Flags().Set("data-dir", "/explicit"))
	require.NoError(t, prepareEnv(cmd, nil))
	assert.Equal(t, "/explicit", dataDir)
}
