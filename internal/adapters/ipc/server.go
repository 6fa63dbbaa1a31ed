package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/protocol"
)

const maxBodyBytes = 16 << 20

// Sink receives validated registrations. Each call must be atomic.
type Sink interface {
	ApplyPage(reg core.PageRegistration)
	ApplyCreatePage(page core.CreatePage)
	ApplyData(reg core.DataRegistration)
}

// Observer is notified of every registration outcome.
type Observer interface {
	ObserveRegistration(endpoint, outcome string)
}

type Option func(*Server)

func WithObserver(o Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// Server is the orchestrator end of one registration session.
type Server struct {
	socketPath string
	listener   net.Listener
	httpServer *http.Server
	sink       Sink
	observer   Observer
	logger     *slog.Logger

	mu       sync.Mutex
	state    core.SessionState
	done     bool
	inflight int
	drained  chan struct{}
	abortErr error
}

// Listen binds socketPath and starts serving. The session starts open:
// readiness reports "not ready" until Activate is called.
func Listen(socketPath string, sink Sink, opts ...Option) (*Server, error) {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", socketPath, err)
	}

	s := &Server{
		socketPath: socketPath,
		listener:   listener,
		sink:       sink,
		logger:     slog.Default(),
		state:      core.SessionOpen,
		drained:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("registration listener stopped", "socket", socketPath, "error", err)
		}
	}()

	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get(protocol.PathReady, s.handleReady)
	r.Group(func(r chi.Router) {
		r.Use(s.trackInflight)
		r.Post(protocol.PathCreatePage, s.handleCreatePage)
		r.Post(protocol.PathSetDataForSlug, s.handleSetDataForSlug)
		r.Post(protocol.PathSetData, s.handleSetData)
	})
	return r
}

func (s *Server) SocketPath() string {
	return s.socketPath
}

func (s *Server) State() core.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Activate makes the session accept registrations.
func (s *Server) Activate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.state.Transition(core.SessionActive)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// DoneSourcing is the "sourcing finished" signal. New registrations are
// refused from here on; requests already in flight still complete.
func (s *Server) DoneSourcing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if next, err := s.state.Transition(core.SessionClosed); err == nil {
		s.state = next
	}
	s.done = true
	if s.inflight == 0 {
		close(s.drained)
	}
}

// Abort ends the session without a done signal, e.g. when the worker exits
// non-zero. Waiters are released with an error wrapping core.ErrSessionAborted.
func (s *Server) Abort(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.state = core.SessionAborted
	s.abortErr = cause
	s.done = true
	if s.inflight == 0 {
		close(s.drained)
	}
}

// Wait blocks until the done signal arrived and every in-flight registration
// resolved.
func (s *Server) Wait(ctx context.Context) error {
	select {
	case <-s.drained:
	case <-ctx.Done():
		return fmt.Errorf("waiting for registrations to settle: %w", ctx.Err())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == core.SessionAborted {
		if s.abortErr != nil {
			return fmt.Errorf("%w: %w", core.ErrSessionAborted, s.abortErr)
		}
		return core.ErrSessionAborted
	}
	return nil
}

// Close stops the listener and removes the socket file.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.httpServer.Shutdown(ctx)
	if rmErr := os.Remove(s.socketPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

func (s *Server) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != core.SessionActive {
		return false
	}
	s.inflight++
	return true
}

func (s *Server) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.done && s.inflight == 0 {
		close(s.drained)
	}
}

func (s *Server) trackInflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.begin() {
			s.observe(r.URL.Path, "refused")
			writeError(w, "session is not accepting registrations", http.StatusServiceUnavailable)
			return
		}
		defer s.end()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("registration request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}

func (s *Server) observe(endpoint, outcome string) {
	if s.observer != nil {
		s.observer.ObserveRegistration(endpoint, outcome)
	}
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.State() == core.SessionActive {
		_, _ = io.WriteString(w, protocol.ReadyBody)
		return
	}
	_, _ = io.WriteString(w, protocol.NotReadyBody)
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var page core.CreatePage
	if !s.decode(w, r, protocol.PathCreatePage, &page) {
		return
	}
	page = page.Normalize()
	if !s.checkSlug(w, protocol.PathCreatePage, page.Slug) {
		return
	}
	s.sink.ApplyCreatePage(page)
	s.ack(w, protocol.PathCreatePage)
}

func (s *Server) handleSetDataForSlug(w http.ResponseWriter, r *http.Request) {
	var reg core.PageRegistration
	if !s.decode(w, r, protocol.PathSetDataForSlug, &reg) {
		return
	}
	reg = reg.Normalize()
	if !s.checkSlug(w, protocol.PathSetDataForSlug, reg.Slug) {
		return
	}
	s.sink.ApplyPage(reg)
	s.ack(w, protocol.PathSetDataForSlug)
}

func (s *Server) handleSetData(w http.ResponseWriter, r *http.Request) {
	var reg core.DataRegistration
	if !s.decode(w, r, protocol.PathSetData, &reg) {
		return
	}
	reg = reg.Normalize()
	if !s.checkSlug(w, protocol.PathSetData, reg.Slug) {
		return
	}
	s.sink.ApplyData(reg)
	s.ack(w, protocol.PathSetData)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, endpoint string, v any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.observe(endpoint, "error")
		writeError(w, fmt.Sprintf("failed to read body: %v", err), http.StatusBadRequest)
		return false
	}

	if keys := protocol.RejectedKeys(endpoint, body); len(keys) > 0 {
		s.unprocessable(w, endpoint, keys, "payload has invalid keys")
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		s.unprocessable(w, endpoint, []string{"$"}, err.Error())
		return false
	}
	return true
}

func (s *Server) checkSlug(w http.ResponseWriter, endpoint, slug string) bool {
	if err := core.ValidateSlug(slug); err != nil {
		s.unprocessable(w, endpoint, []string{"slug"}, err.Error())
		return false
	}
	return true
}

func (s *Server) unprocessable(w http.ResponseWriter, endpoint string, keys []string, msg string) {
	s.observe(endpoint, "unprocessable")
	s.logger.Warn("rejected registration", "endpoint", endpoint, "keys", keys, "reason", msg)
	writeJSON(w, protocol.Unprocessable{Error: msg, Keys: keys}, http.StatusUnprocessableEntity)
}

func (s *Server) ack(w http.ResponseWriter, endpoint string) {
	s.observe(endpoint, "ok")
	writeJSON(w, protocol.Ack{OK: true}, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]string{"error": message}, statusCode)
}
