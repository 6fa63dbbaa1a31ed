package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/3-lines-studio/toast/internal/adapters/ipc"
	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/sourcing"
)

type SourceInput struct {
	SiteDir    string
	ModulePath string
	// Worker is the worker binary. Empty runs the module in process.
	Worker  string
	Mode    sourcing.BuildMode
	Timeout time.Duration
	// Source runs in process instead of ModulePath when set.
	Source sourcing.SourceFunc
	Stdout io.Writer
	Stderr io.Writer
}

type SourceOutput struct {
	Pages   []core.Page
	Orphans []string
	Error   error
}

// SourceService runs one registration session and returns the finalized
// pages.
type SourceService struct {
	metrics Metrics
	logger  *slog.Logger
}

func NewSourceService(metrics Metrics) *SourceService {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &SourceService{metrics: metrics, logger: slog.Default()}
}

func (s *SourceService) Source(ctx context.Context, input SourceInput) SourceOutput {
	start := time.Now()
	defer func() { s.metrics.ObserveSession(time.Since(start)) }()

	registry := core.NewRegistry()
	socket := filepath.Join(os.TempDir(), fmt.Sprintf("toast-%s.sock", uuid.NewString()))

	srv, err := ipc.Listen(socket, registry, ipc.WithObserver(s.metrics), ipc.WithLogger(s.logger))
	if err != nil {
		return SourceOutput{Error: fmt.Errorf("failed to open registration listener: %w", err)}
	}
	defer func() { _ = srv.Close() }()

	if err := srv.Activate(); err != nil {
		return SourceOutput{Error: err}
	}

	session := sourcing.Session{SocketPath: socket, ModulePath: input.ModulePath}
	if input.Source != nil || input.Worker == "" {
		err = s.runInProcess(ctx, session, input)
	} else {
		err = s.runWorker(ctx, session, input)
	}

	if err != nil {
		srv.Abort(err)
	} else {
		srv.DoneSourcing()
	}

	waitCtx := ctx
	if input.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, input.Timeout)
		defer cancel()
	}
	if err := srv.Wait(waitCtx); err != nil {
		return SourceOutput{Error: err}
	}

	pages, orphans := registry.Finalize()
	for _, slug := range orphans {
		s.logger.Warn("slug received data but no component, skipping", "slug", slug)
	}
	s.metrics.AddOrphans(len(orphans))

	return SourceOutput{Pages: pages, Orphans: orphans}
}

func (s *SourceService) runInProcess(ctx context.Context, session sourcing.Session, input SourceInput) error {
	fn := input.Source
	if fn == nil {
		loaded, err := sourcing.LoadModule(session.ModulePath)
		if err != nil {
			return err
		}
		fn = loaded
	}

	client, err := sourcing.Open(ctx, session, sourcing.Options{Mode: input.Mode, Timeout: input.Timeout, Logger: s.logger})
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := fn(ctx, client); err != nil {
		return fmt.Errorf("source module %s failed: %w", session.ModulePath, err)
	}
	return nil
}

func (s *SourceService) runWorker(ctx context.Context, session sourcing.Session, input SourceInput) error {
	module := session.ModulePath
	if !strings.HasPrefix(module, "go:") && !filepath.IsAbs(module) {
		abs, err := filepath.Abs(module)
		if err != nil {
			return fmt.Errorf("failed to resolve source module %s: %w", module, err)
		}
		module = abs
	}

	cmd := exec.CommandContext(ctx, input.Worker, session.SocketPath, module)
	cmd.Dir = input.SiteDir
	cmd.Env = append(os.Environ(), sourcing.EnvBuildMode+"="+string(input.Mode))
	if input.Timeout > 0 {
		cmd.Env = append(cmd.Env, sourcing.EnvTimeout+"="+input.Timeout.String())
	}
	cmd.Stdout = input.Stdout
	cmd.Stderr = input.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("worker %s exited with code %d", input.Worker, exitErr.ExitCode())
		}
		return fmt.Errorf("failed to run worker %s: %w", input.Worker, err)
	}
	return nil
}
