package sourcing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

const (
	EnvBuildMode = "TOAST_BUILD_MODE"
	EnvTimeout   = "TOAST_SOURCE_TIMEOUT"
)

// ParseArgs reads the worker's positional arguments: socket path and module path.
func ParseArgs(argv []string) (Session, error) {
	if len(argv) != 2 {
		return Session{}, fmt.Errorf("usage: toast-source <socket> <module>, got %d arguments", len(argv))
	}
	if argv[0] == "" || argv[1] == "" {
		return Session{}, fmt.Errorf("socket and module paths must be non-empty")
	}
	return Session{SocketPath: argv[0], ModulePath: argv[1]}, nil
}

// Run opens the session, runs the module and closes the session.
func Run(ctx context.Context, session Session, opts Options) error {
	fn, err := LoadModule(session.ModulePath)
	if err != nil {
		return err
	}

	client, err := Open(ctx, session, opts)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := fn(ctx, client); err != nil {
		return fmt.Errorf("source module %s failed: %w", session.ModulePath, err)
	}
	return nil
}

// RunWorker is the worker process entry point. It returns the exit code:
// zero on success, non-zero with diagnostics written to stderr otherwise.
func RunWorker(ctx context.Context, argv []string, stderr io.Writer) int {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	session, err := ParseArgs(argv)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "toast-source: %v\n", err)
		return 2
	}

	mode, err := ParseBuildMode(os.Getenv(EnvBuildMode))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "toast-source: %v\n", err)
		return 2
	}

	var timeout time.Duration
	if raw := os.Getenv(EnvTimeout); raw != "" {
		if timeout, err = time.ParseDuration(raw); err != nil {
			_, _ = fmt.Fprintf(stderr, "toast-source: invalid %s: %v\n", EnvTimeout, err)
			return 2
		}
	}

	if err := Run(ctx, session, Options{Mode: mode, Timeout: timeout, Logger: logger}); err != nil {
		_, _ = fmt.Fprintf(stderr, "toast-source: %v\n", err)
		return 1
	}
	return 0
}
