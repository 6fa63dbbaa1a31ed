package sourcing

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast/internal/core"
)

func TestParseArgs(t *testing.T) {
	s, err := ParseArgs([]string{"/tmp/s.sock", "toast.yaml"})
	require.NoError(t, err)
	assert.Equal(t, Session{SocketPath: "/tmp/s.sock", ModulePath: "toast.yaml"}, s)

	_, err = ParseArgs([]string{"only-one"})
	assert.Error(t, err)

	_, err = ParseArgs([]string{"", "x"})
	assert.Error(t, err)
}

func TestRunWorker_ExitCodes(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 2, RunWorker(context.Background(), nil, &stderr))
	assert.Contains(t, stderr.String(), "usage")

	stderr.Reset()
	assert.Equal(t, 1, RunWorker(context.Background(), []string{"/nonexistent/s.sock", "go:nope"}, &stderr))
	assert.NotEmpty(t, stderr.String())
}

func TestRunWorker_Success(t *testing.T) {
	srv, reg, session := startOrchestrator(t)

	dir := t.TempDir()
	module := filepath.Join(dir, "toast.yaml")
	writeFile(t, module, "pages:\n  - slug: /\n    component: { mode: filepath, value: src/pages/index.html }\n")

	var stderr bytes.Buffer
	code := RunWorker(context.Background(), []string{session.SocketPath, module}, &stderr)
	require.Equal(t, 0, code, stderr.String())

	srv.DoneSourcing()
	require.NoError(t, srv.Wait(context.Background()))

	pages, _ := reg.Finalize()
	require.Len(t, pages, 1)
	assert.Equal(t, core.Filepath("src/pages/index.html"), *pages[0].Component)
}

func TestRunWorker_ModuleFailureIsNonZero(t *testing.T) {
	_, _, session := startOrchestrator(t)

	dir := t.TempDir()
	module := filepath.Join(dir, "toast.yaml")
	writeFile(t, module, "pages:\n  - slug: /\n    mode: filepath\n")

	var stderr bytes.Buffer
	assert.Equal(t, 1, RunWorker(context.Background(), []string{session.SocketPath, module}, &stderr))
	assert.Contains(t, stderr.String(), "top-level key")
}
