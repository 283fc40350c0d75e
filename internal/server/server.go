// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// HTTP surface over the job orchestrator

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/sony-level/scene-runner/internal/job"
)

// Defaults
const (
	DefaultAddr            = ":8080"
	DefaultBodyLimit       = 64 << 10
	DefaultShutdownTimeout = 30 * time.Second
)

// Orchestrator is the part of job.Orchestrator the server needs
type Orchestrator interface {
	Run(ctx context.Context, prompt string) (job.Result, error)
	Get(id string) (job.Job, bool)
}

// Config configures the server
type Config struct {
	Addr            string
	BodyLimit       int64
	ShutdownTimeout time.Duration
	Fs              afero.Fs // Filesystem holding artifacts; defaults to the OS
	Log             *zap.Logger
}

// Server serves the generation API
type Server struct {
	orch   Orchestrator
	config Config
	log    *zap.Logger
	router chi.Router
}

// New creates a server around orch
func New(orch Orchestrator, config Config) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.BodyLimit <= 0 {
		config.BodyLimit = DefaultBodyLimit
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	if config.Fs == nil {
		config.Fs = afero.NewOsFs()
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}

	s := &Server{
		orch:   orch,
		config: config,
		log:    config.Log.Named("http"),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(s.config.BodyLimit))

	r.Get("/healthz", s.handleHealth)
	r.Post("/generate", s.handleGenerate)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Get("/videos/{id}", s.handleGetVideo)
	return r
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
