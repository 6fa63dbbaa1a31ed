// Package sourcing is the worker side of a registration session: it exposes
// page registration capabilities to user sourcing code and forwards them to
// the orchestrator.
package sourcing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/3-lines-studio/toast/internal/adapters/ipc"
	"github.com/3-lines-studio/toast/internal/core"
)

// BuildMode selects which capabilities a session exposes.
type BuildMode string

const (
	// BuildModeDescriptor registers pages by component descriptor.
	BuildModeDescriptor BuildMode = "descriptor"
	// BuildModeInline registers pages from fully formed module source.
	BuildModeInline BuildMode = "inline"
)

func ParseBuildMode(s string) (BuildMode, error) {
	switch BuildMode(s) {
	case "", BuildModeDescriptor:
		return BuildModeDescriptor, nil
	case BuildModeInline:
		return BuildModeInline, nil
	default:
		return "", fmt.Errorf("unknown build mode %q (expected %q or %q)", s, BuildModeDescriptor, BuildModeInline)
	}
}

// Session identifies one worker invocation: where to reach the orchestrator
// and which sourcing module to run.
type Session struct {
	SocketPath string
	ModulePath string
}

type Options struct {
	Mode    BuildMode
	Timeout time.Duration
	Logger  *slog.Logger
}

type transport interface {
	Ready(ctx context.Context) error
	Post(ctx context.Context, endpoint, slug string, payload any) error
}

// Result is the outcome of one registration call. Transport failures are
// reported here instead of as an error so sourcing can continue.
type Result struct {
	OK   bool
	Slug string
	Err  error
}

// Actions is the capability set handed to user sourcing code.
type Actions interface {
	CreatePage(ctx context.Context, page core.CreatePage) (Result, error)
	SetDataForSlug(ctx context.Context, slug any, args map[string]any) (Result, error)
	SetData(ctx context.Context, reg core.DataRegistration) (Result, error)
}

// Client implements Actions over an ipc transport.
type Client struct {
	session   Session
	mode      BuildMode
	transport transport
	logger    *slog.Logger

	mu    sync.Mutex
	state core.SessionState
}

// Open checks the orchestrator is ready and returns an active client, or an error
// wrapping core.ErrNotReady.
func Open(ctx context.Context, session Session, opts Options) (*Client, error) {
	if session.SocketPath == "" {
		return nil, fmt.Errorf("missing socket path")
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return open(ctx, session, opts, ipc.NewTransport(session.SocketPath, timeout))
}

func open(ctx context.Context, session Session, opts Options, t transport) (*Client, error) {
	mode, err := ParseBuildMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		session:   session,
		mode:      mode,
		transport: t,
		logger:    logger,
		state:     core.SessionOpen,
	}

	if err := t.Ready(ctx); err != nil {
		return nil, err
	}
	if err := c.transition(core.SessionActive); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Session() Session {
	return c.session
}

func (c *Client) Mode() BuildMode {
	return c.mode
}

func (c *Client) State() core.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close ends the session. Calls made afterwards fail with core.ErrSessionClosed.
func (c *Client) Close() error {
	return c.transition(core.SessionClosed)
}

func (c *Client) transition(next core.SessionState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.state.Transition(next)
	if err != nil {
		return err
	}
	c.state = s
	return nil
}

func (c *Client) checkActive(capability string, allowed ...BuildMode) error {
	if c.State() != core.SessionActive {
		return fmt.Errorf("%s: %w", capability, core.ErrSessionClosed)
	}
	for _, m := range allowed {
		if m == c.mode {
			return nil
		}
	}
	return fmt.Errorf("%s in %s mode: %w", capability, c.mode, core.ErrCapabilityUnavailable)
}
