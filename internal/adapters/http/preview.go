// Package http serves built sites for local preview.
package http

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/3-lines-studio/toast/internal/core"
)

type PreviewOptions struct {
	OutputDir string
	SiteDir   string
	Logger    *slog.Logger
}

// NewPreviewRouter serves OutputDir, falls back to SiteDir for runtime
// modules and exposes the last render manifest.
func NewPreviewRouter(opts PreviewOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/__toast/manifest", func(w http.ResponseWriter, req *http.Request) {
		data, err := os.ReadFile(filepath.Join(opts.OutputDir, filepath.FromSlash(core.RenderManifestPath)))
		if err != nil {
			http.Error(w, "no render manifest, run toast build first", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})

	roots := []string{opts.OutputDir}
	if opts.SiteDir != "" {
		roots = append(roots, opts.SiteDir)
	}
	site := NewSiteHandler(roots...)
	r.Handle("/*", site)

	return r
}

func NewPreviewServer(addr string, opts PreviewOptions) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewPreviewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("preview request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}
