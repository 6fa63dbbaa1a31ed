package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast/internal/adapters/compile"
	"github.com/3-lines-studio/toast/internal/core"
)

type fakeRenderer struct {
	requests []RenderRequest
	stopped  bool
}

func (f *fakeRenderer) Render(_ context.Context, req RenderRequest) (core.Fragment, error) {
	f.requests = append(f.requests, req)
	return core.Fragment{HTML: "<p>" + req.Children + "</p>", Head: core.Head{Title: "js"}}, nil
}

func (f *fakeRenderer) Stop() error {
	f.stopped = true
	return nil
}

func newFakeEngine(t *testing.T) (*Engine, *fakeRenderer, *int) {
	t.Helper()
	fake := &fakeRenderer{}
	starts := 0
	e := NewEngine(Options{SiteDir: t.TempDir()})
	e.start = func(Options) (serverRenderer, error) {
		starts++
		return fake, nil
	}
	return e, fake, &starts
}

func TestEngine_CompileWritesServerModule(t *testing.T) {
	e, fake, starts := newFakeEngine(t)

	c, err := e.Compile(context.Background(), "src/pages/index.jsx",
		[]byte(`import { h } from "preact"; export default () => <h1>hi</h1>;`))
	require.NoError(t, err)
	assert.Equal(t, 0, *starts, "node must not start before the first render")

	jc := c.(*jsComponent)
	assert.True(t, strings.HasPrefix(jc.path, filepath.Join(e.opts.SiteDir, TmpDir)))
	code, err := os.ReadFile(jc.path)
	require.NoError(t, err)
	assert.Contains(t, string(code), `h("h1"`)

	for range 2 {
		frag, err := c.Render(context.Background(), core.Props{Children: "x"})
		require.NoError(t, err)
		assert.Equal(t, "<p>x</p>", frag.HTML)
	}
	assert.Equal(t, 1, *starts)
	require.Len(t, fake.requests, 2)
	assert.Equal(t, map[string]any{}, fake.requests[0].Props)

	require.NoError(t, e.Close())
	assert.True(t, fake.stopped)
}

func TestEngine_CompileRejectsMissingDefault(t *testing.T) {
	e, _, _ := newFakeEngine(t)
	_, err := e.Compile(context.Background(), "src/pages/a.js", []byte(`export const A = 1;`))
	assert.ErrorIs(t, err, compile.ErrNoDefaultExport)
}

func TestEngine_StartFailure(t *testing.T) {
	e := NewEngine(Options{SiteDir: t.TempDir()})
	e.start = func(Options) (serverRenderer, error) {
		return nil, errors.New("no node")
	}
	c, err := e.Compile(context.Background(), "a.jsx", []byte(`export default () => null;`))
	require.NoError(t, err)
	_, err = c.Render(context.Background(), core.Props{})
	assert.EqualError(t, err, "no node")
}

func TestExtractRenderer(t *testing.T) {
	dir := t.TempDir()
	path, err := ExtractRenderer(filepath.Join(dir, TmpDir))
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, RendererSource, string(content))
}

func skipIfNoNode(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("node"); err != nil {
		t.Skip("node not found in PATH")
	}
	modules := os.Getenv("TOAST_TEST_NODE_MODULES")
	if modules == "" {
		t.Skip("TOAST_TEST_NODE_MODULES not set")
	}
	return modules
}

func TestRenderer_Node(t *testing.T) {
	nodeModules := skipIfNoNode(t)

	site := t.TempDir()
	require.NoError(t, os.Symlink(nodeModules, filepath.Join(site, "node_modules")))

	e := NewEngine(Options{SiteDir: site})
	t.Cleanup(func() { _ = e.Close() })

	c, err := e.Compile(context.Background(), "src/page-wrapper.jsx", []byte(`import { h } from "preact";
export const head = (props) => ({ title: props.title });
export default ({ title, children }) => <main><h1>{title}</h1>{children}</main>;
`))
	require.NoError(t, err)

	frag, err := c.Render(context.Background(), core.Props{
		Data:     map[string]any{"title": "Hello"},
		Children: "<p>inner</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "<main><h1>Hello</h1><p>inner</p></main>", frag.HTML)
	assert.Equal(t, "Hello", frag.Head.Title)
}
