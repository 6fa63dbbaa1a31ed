package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast/internal/adapters/cli"
	"github.com/3-lines-studio/toast/internal/adapters/compile"
	"github.com/3-lines-studio/toast/internal/adapters/fs"
	"github.com/3-lines-studio/toast/internal/config"
	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/sourcing"
)

func TestSource_InProcess(t *testing.T) {
	src := func(ctx context.Context, actions sourcing.Actions) error {
		if _, err := actions.SetDataForSlug(ctx, "/b", map[string]any{
			"component": core.Filepath("src/pages/b.html"),
			"data":      map[string]any{"n": 1},
		}); err != nil {
			return err
		}
		if _, err := actions.SetDataForSlug(ctx, "a", map[string]any{
			"component": core.Filepath("src/pages/a.html"),
		}); err != nil {
			return err
		}
		_, err := actions.SetData(ctx, core.DataRegistration{Slug: "/orphan", Data: map[string]any{"x": true}})
		return err
	}

	res := NewSourceService(nil).Source(context.Background(), SourceInput{
		Mode:    sourcing.BuildModeDescriptor,
		Timeout: 5 * time.Second,
		Source:  src,
	})
	require.NoError(t, res.Error)
	require.Len(t, res.Pages, 2)
	assert.Equal(t, "/a", res.Pages[0].Slug)
	assert.Equal(t, "/b", res.Pages[1].Slug)
	assert.Equal(t, map[string]any{"n": float64(1)}, res.Pages[1].Data)
	assert.Equal(t, []string{"/orphan"}, res.Orphans)
}

func TestSource_FailureAborts(t *testing.T) {
	res := NewSourceService(nil).Source(context.Background(), SourceInput{
		Mode: sourcing.BuildModeDescriptor,
		Source: func(context.Context, sourcing.Actions) error {
			return errors.New("database down")
		},
	})
	require.ErrorIs(t, res.Error, core.ErrSessionAborted)
	assert.ErrorContains(t, res.Error, "database down")
	assert.Empty(t, res.Pages)
}

func TestSource_ValidationErrorAborts(t *testing.T) {
	res := NewSourceService(nil).Source(context.Background(), SourceInput{
		Mode: sourcing.BuildModeDescriptor,
		Source: func(ctx context.Context, actions sourcing.Actions) error {
			_, err := actions.SetDataForSlug(ctx, "/x", map[string]any{"component": "src/pages/x.js"})
			return err
		},
	})
	require.ErrorIs(t, res.Error, core.ErrSessionAborted)
	assert.ErrorIs(t, res.Error, core.ErrMalformedComponent)
}

func TestSource_WorkerMissing(t *testing.T) {
	res := NewSourceService(nil).Source(context.Background(), SourceInput{
		Worker:     filepath.Join(t.TempDir(), "no-such-worker"),
		ModulePath: "toast.source.yaml",
		Mode:       sourcing.BuildModeDescriptor,
	})
	require.ErrorIs(t, res.Error, core.ErrSessionAborted)
}

func TestSource_WorkerGetsModuleOutsideSiteDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell worker")
	}
	root := t.TempDir()
	siteDir := filepath.Join(root, "site")
	require.NoError(t, os.MkdirAll(siteDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "toast.source.yaml"), []byte("pages: []\n"), 0o644))
	worker := filepath.Join(root, "worker.sh")
	require.NoError(t, os.WriteFile(worker, []byte("#!/bin/sh\ntest -f \"$2\"\n"), 0o755))
	t.Chdir(root)

	var stderr bytes.Buffer
	res := NewSourceService(nil).Source(context.Background(), SourceInput{
		SiteDir:    "site",
		ModulePath: filepath.Join("site", "toast.source.yaml"),
		Worker:     worker,
		Mode:       sourcing.BuildModeDescriptor,
		Timeout:    5 * time.Second,
		Stderr:     &stderr,
	})
	require.NoError(t, res.Error, stderr.String())
	assert.Empty(t, res.Pages)
}

func TestBuild_EndToEnd(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "src/page-wrapper.html", `<main>{{.Children}}</main>`)
	writeFile(t, site, "src/pages/index.html", `{{title .Data.title}}<h1>{{.Data.title}}</h1>`)
	writeFile(t, site, "content/posts/hello.md", "---\ntitle: Hello\n---\nHi *there*\n")
	writeFile(t, site, "src/pages/post.html", `<article>{{safe .Data.body}}</article>`)
	writeFile(t, site, "toast.source.yaml", `
pages:
  - slug: /
    component: { mode: filepath, value: src/pages/index.html }
    data: { title: Home }
collections:
  - glob: content/posts/*.md
    slug: "/posts/{{ .Stem }}"
    component: { mode: filepath, value: src/pages/post.html }
`)

	cfg := config.Default()
	cfg.Site.Dir = site
	cfg.Site.Wrapper = "src/page-wrapper.html"
	cfg.Source.Worker = ""
	cfg.Render.Concurrency = 0

	var stdout, stderr bytes.Buffer
	out := cli.NewWriterOutput(&stdout, &stderr)
	osfs := fs.NewOSFileSystem()
	loader := newLoader(site)

	build := NewBuildService(
		NewSourceService(nil),
		NewEmitService(osfs, loader, compile.NewBrowserCompiler(compile.DefaultImportMap(core.DefaultRuntimeModule))),
		NewRenderService(osfs, loader, RenderOptions{}, nil),
		out,
		nil,
	)

	res := build.Build(context.Background(), BuildInput{Config: cfg})
	require.NoError(t, res.Error, stderr.String())
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Manifest.Rendered())

	output := filepath.Join(site, "public")
	index := readFile(t, output, "index.html")
	assert.Contains(t, index, "<title>Home</title>")
	assert.Contains(t, index, "<main><h1>Home</h1></main>")

	post := readFile(t, output, "posts/hello.html")
	assert.Contains(t, post, "<em>there</em>")
	assert.FileExists(t, filepath.Join(output, "src/pages/posts/hello.js"))
	assert.FileExists(t, filepath.Join(output, "src/pages/posts/hello.wrapper.js"))
	assert.Contains(t, stdout.String(), "Build complete")
}
