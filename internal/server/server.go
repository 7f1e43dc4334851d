// Package server exposes the morph pipeline over HTTP.
//
// The surface is small: upload a source image (and optionally a target),
// pick a preset or custom parameters, receive a download URL for the
// rendered GIF. Jobs run synchronously within the request, matching the
// CLI's behavior; job artifacts are named by UUID so concurrent requests
// never collide.
package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cellmorph/cellmorph/pkg/cache"
	"github.com/cellmorph/cellmorph/pkg/pipeline"
	"github.com/cellmorph/cellmorph/pkg/preset"
)

// DefaultMaxUpload caps multipart request bodies at 16 MiB.
const DefaultMaxUpload = 16 << 20

// Config configures the HTTP server.
type Config struct {
	Addr      string // listen address, e.g. ":8080"
	UploadDir string // scratch space for uploaded images
	OutputDir string // rendered GIFs, served by /download

	// TargetPath is the image morphed into when the request uploads no
	// target of its own.
	TargetPath string

	// MaxUpload bounds the request body in bytes. 0 means DefaultMaxUpload.
	MaxUpload int64

	// Presets available to requests. Nil means the builtins.
	Presets map[string]preset.Preset

	Cache  cache.Cache // nil disables assignment caching
	Logger *log.Logger // nil discards
}

// Server handles morph requests.
type Server struct {
	cfg     Config
	runner  *pipeline.Runner
	presets map[string]preset.Preset
	logger  *log.Logger
}

// New creates the server and its working directories.
func New(cfg Config) (*Server, error) {
	if cfg.MaxUpload == 0 {
		cfg.MaxUpload = DefaultMaxUpload
	}
	if cfg.Presets == nil {
		cfg.Presets = preset.Builtin()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	for _, dir := range []string{cfg.UploadDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return &Server{
		cfg:     cfg,
		runner:  pipeline.NewRunner(cfg.Cache, cfg.Logger),
		presets: cfg.Presets,
		logger:  cfg.Logger,
	}, nil
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/presets", s.handlePresets)
	r.Post("/generate", s.handleGenerate)
	r.Get("/download/{name}", s.handleDownload)
	return r
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// logRequests logs each request with method, path and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
