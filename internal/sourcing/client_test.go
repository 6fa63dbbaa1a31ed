package sourcing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast/internal/adapters/ipc"
	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/protocol"
)

type recordingTransport struct {
	mu      sync.Mutex
	ready   error
	postErr error
	posts   []recordedPost
}

type recordedPost struct {
	endpoint string
	slug     string
	payload  any
}

func (r *recordingTransport) Ready(context.Context) error {
	return r.ready
}

func (r *recordingTransport) Post(_ context.Context, endpoint, slug string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, recordedPost{endpoint, slug, payload})
	return r.postErr
}

func openFake(t *testing.T, mode BuildMode, tr *recordingTransport) *Client {
	t.Helper()
	c, err := open(context.Background(), Session{SocketPath: "fake", ModulePath: "go:test"}, Options{Mode: mode}, tr)
	require.NoError(t, err)
	return c
}

func startOrchestrator(t *testing.T) (*ipc.Server, *core.Registry, Session) {
	t.Helper()
	dir, err := os.MkdirTemp("", "toast-src")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	reg := core.NewRegistry()
	sock := filepath.Join(dir, "s.sock")
	srv, err := ipc.Listen(sock, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	require.NoError(t, srv.Activate())

	return srv, reg, Session{SocketPath: sock, ModulePath: "go:test"}
}

func TestSetDataForSlug_WellFormedReachesOrchestrator(t *testing.T) {
	srv, reg, session := startOrchestrator(t)
	ctx := context.Background()

	client, err := Open(ctx, session, Options{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, core.SessionActive, client.State())

	res, err := client.SetDataForSlug(ctx, "/posts/a", map[string]any{
		"component": map[string]any{"mode": "filepath", "value": "src/pages/post.js"},
		"data":      map[string]any{"title": "A"},
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "/posts/a", res.Slug)

	require.NoError(t, client.Close())
	srv.DoneSourcing()
	require.NoError(t, srv.Wait(ctx))

	pages, _ := reg.Finalize()
	require.Len(t, pages, 1)
	assert.Equal(t, "/posts/a", pages[0].Slug)
	assert.Equal(t, core.Filepath("src/pages/post.js"), *pages[0].Component)
}

func TestSetDataForSlug_ValidationHappensBeforeNetwork(t *testing.T) {
	tr := &recordingTransport{}
	client := openFake(t, BuildModeDescriptor, tr)
	ctx := context.Background()

	for _, slug := range []any{nil, "", 0, false} {
		_, err := client.SetDataForSlug(ctx, slug, map[string]any{})
		assert.ErrorIs(t, err, core.ErrInvalidSlug)
	}

	_, err := client.SetDataForSlug(ctx, "/x", map[string]any{"component": "not-an-object"})
	assert.ErrorIs(t, err, core.ErrMalformedComponent)
	assert.Contains(t, err.Error(), "source")
	assert.Contains(t, err.Error(), "filepath")

	_, err = client.SetDataForSlug(ctx, "/x", map[string]any{"mode": "filepath", "data": map[string]any{}})
	assert.ErrorIs(t, err, core.ErrMisplacedMode)

	assert.Empty(t, tr.posts)
}

func TestSetDataForSlug_NullComponentTransmitsNoModule(t *testing.T) {
	tr := &recordingTransport{}
	client := openFake(t, BuildModeDescriptor, tr)

	res, err := client.SetDataForSlug(context.Background(), "/x", map[string]any{"component": nil})
	require.NoError(t, err)
	assert.True(t, res.OK)

	require.Len(t, tr.posts, 1)
	sent, ok := tr.posts[0].payload.(core.PageRegistration)
	require.True(t, ok)
	require.NotNil(t, sent.Component)
	assert.True(t, sent.Component.IsNoModule())
	assert.Equal(t, protocol.PathSetDataForSlug, tr.posts[0].endpoint)
}

func TestSend_TransportFailureIsSwallowed(t *testing.T) {
	tr := &recordingTransport{postErr: &core.RegistrationError{Kind: core.ErrTransportFailure, Slug: "/x"}}
	client := openFake(t, BuildModeDescriptor, tr)

	res, err := client.SetData(context.Background(), core.DataRegistration{Slug: "/x"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, core.ErrTransportFailure)
}

func TestSend_UnprocessableIsRaisedWithKeys(t *testing.T) {
	_, _, session := startOrchestrator(t)
	ctx := context.Background()

	client, err := Open(ctx, session, Options{})
	require.NoError(t, err)

	res, err := client.SetData(ctx, core.DataRegistration{Slug: "/../escape"})
	require.Error(t, err)
	assert.False(t, res.OK)
	assert.ErrorIs(t, err, core.ErrUnprocessablePayload)

	var regErr *core.RegistrationError
	require.True(t, errors.As(err, &regErr))
	assert.Equal(t, []string{"slug"}, regErr.Keys)
	assert.Contains(t, err.Error(), "/../escape")
}

func TestOpen_NotReady(t *testing.T) {
	_, err := open(context.Background(), Session{SocketPath: "fake"}, Options{}, &recordingTransport{ready: core.ErrNotReady})
	assert.ErrorIs(t, err, core.ErrNotReady)

	dir, err := os.MkdirTemp("", "toast-src")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "s.sock")
	srv, err := ipc.Listen(sock, core.NewRegistry())
	require.NoError(t, err)
	defer srv.Close()

	_, err = Open(context.Background(), Session{SocketPath: sock}, Options{})
	assert.ErrorIs(t, err, core.ErrNotReady)
}

func TestCapabilitiesFollowBuildMode(t *testing.T) {
	ctx := context.Background()

	descriptor := openFake(t, BuildModeDescriptor, &recordingTransport{})
	_, err := descriptor.CreatePage(ctx, core.CreatePage{Slug: "/", Module: "x"})
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)

	inline := openFake(t, BuildModeInline, &recordingTransport{})
	_, err = inline.SetDataForSlug(ctx, "/", map[string]any{})
	assert.ErrorIs(t, err, core.ErrCapabilityUnavailable)

	res, err := inline.CreatePage(ctx, core.CreatePage{Slug: "/", Module: "x"})
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestClosedClientRefusesCalls(t *testing.T) {
	tr := &recordingTransport{}
	client := openFake(t, BuildModeDescriptor, tr)
	require.NoError(t, client.Close())

	_, err := client.SetData(context.Background(), core.DataRegistration{Slug: "/a"})
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	assert.ErrorIs(t, client.Close(), core.ErrSessionClosed)
	assert.Empty(t, tr.posts)
}
