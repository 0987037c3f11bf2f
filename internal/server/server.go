package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// Config holds the server's runtime configuration.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
}

// Server wires the pipeline runner into an HTTP API.
type Server struct {
	runner  *pipeline.Runner
	logger  *log.Logger
	metrics *MetricsProvider
	router  chi.Router
}

// New creates a server around a runner. A nil metrics provider disables the
// metrics endpoint; a nil logger falls back to the default logger.
func New(runner *pipeline.Runner, logger *log.Logger, metrics *MetricsProvider) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		runner:  runner,
		logger:  logger,
		metrics: metrics,
	}

	r := chi.NewRouter()
	r.Use(requestID())
	r.Use(logging(logger))
	r.Use(recoverer(logger))

	r.Get("/healthz", s.handleHealth)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	r.Post("/v1/generate", s.handleGenerate)

	s.router = r
	return s
}

// Handler returns the root HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until the context is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, cfg Config) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
