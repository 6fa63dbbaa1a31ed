package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "toast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "public"), cfg.OutputDir())
	assert.Equal(t, "descriptor", cfg.Source.Mode)
	assert.Equal(t, "/web_modules/preact.js", cfg.Render.RuntimeModule)
	assert.Equal(t, 30*time.Second, cfg.Source.Timeout)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
site:
  output: dist
  wrapper: src/page-wrapper.html
source:
  module: go:blog
  mode: inline
  timeout: 5s
render:
  concurrency: 4
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TOAST_NODE=/opt/node\nTOAST_OUTPUT_DIR=from-dotenv\n"), 0o644))
	t.Setenv("TOAST_OUTPUT_DIR", "from-env")
	t.Setenv("TOAST_RENDER_CONCURRENCY", "2")
	t.Cleanup(func() { _ = os.Unsetenv("TOAST_NODE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Site.Output, "process env wins over .env and file")
	assert.Equal(t, "/opt/node", cfg.Render.Node, ".env fills unset variables")
	assert.Equal(t, 2, cfg.Render.Concurrency)
	assert.Equal(t, "inline", cfg.Source.Mode)
	assert.Equal(t, 5*time.Second, cfg.Source.Timeout)
	assert.Equal(t, "go:blog", cfg.ModulePath())
	assert.Equal(t, "src/page-wrapper.html", cfg.Site.Wrapper)
}

func TestLoad_RelativeConfigPathYieldsAbsoluteSite(t *testing.T) {
	root := t.TempDir()
	siteDir := filepath.Join(root, "site")
	require.NoError(t, os.MkdirAll(siteDir, 0o755))
	writeConfig(t, siteDir, "source:\n  module: toast.source.yaml\n")
	t.Chdir(root)

	cfg, err := Load(filepath.Join("site", "toast.yaml"))
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(cfg.Site.Dir))

	want, err := filepath.EvalSymlinks(siteDir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(cfg.Site.Dir)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, filepath.IsAbs(cfg.ModulePath()))
	assert.Equal(t, filepath.Join(cfg.Site.Dir, "toast.source.yaml"), cfg.ModulePath())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidEnv(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	t.Setenv("TOAST_SOURCE_TIMEOUT", "soon")
	_, err := Load(path)
	assert.ErrorContains(t, err, "TOAST_SOURCE_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Source.Mode = "stream" }, "source.mode"},
		{"negative concurrency", func(c *Config) { c.Render.Concurrency = -1 }, "render.concurrency"},
		{"empty module", func(c *Config) { c.Source.Module = "" }, "source.module"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
