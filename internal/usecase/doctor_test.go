package usecase

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast/internal/adapters/cli"
	"github.com/3-lines-studio/toast/internal/adapters/fs"
	"github.com/3-lines-studio/toast/internal/config"
)

func findCheck(t *testing.T, checks []DoctorCheck, name string) DoctorCheck {
	t.Helper()
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s check", name)
	return DoctorCheck{}
}

func TestDoctor(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "toast.source.yaml", "pages: []\n")

	cfg := config.Default()
	cfg.Site.Dir = site
	cfg.Source.Worker = ""

	var buf bytes.Buffer
	res := NewDoctorService(fs.NewOSFileSystem(), cli.NewWriterOutput(&buf, &buf)).Check(context.Background(), cfg)
	require.NoError(t, res.Error, buf.String())

	assert.True(t, findCheck(t, res.Checks, "source module").OK)
	assert.True(t, findCheck(t, res.Checks, "worker").OK)
	assert.True(t, findCheck(t, res.Checks, "output directory").OK)
	assert.False(t, findCheck(t, res.Checks, "preact").OK)
	assert.True(t, findCheck(t, res.Checks, "preact").Optional)
}

func TestDoctor_Failures(t *testing.T) {
	cfg := config.Default()
	cfg.Site.Dir = t.TempDir()
	cfg.Source.Module = filepath.Join(cfg.Site.Dir, "missing.yaml")
	cfg.Source.Worker = "toast-source-does-not-exist"

	var buf bytes.Buffer
	res := NewDoctorService(fs.NewOSFileSystem(), cli.NewWriterOutput(&buf, &buf)).Check(context.Background(), cfg)
	require.Error(t, res.Error)
	assert.False(t, findCheck(t, res.Checks, "source module").OK)
	assert.False(t, findCheck(t, res.Checks, "worker").OK)
	assert.Contains(t, buf.String(), "✗")
}
