// Package server exposes the pass service over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkpass/inkpass/config"
	"github.com/inkpass/inkpass/observability"
	"github.com/inkpass/inkpass/passes"
)

// Server wires the pass generator into a chi router.
type Server struct {
	generator *passes.Generator
	config    *config.ServerEnvironment
	logger    observability.Logger
	router    *chi.Mux

	// renderSlots bounds concurrent generations; rendering and signing
	// are CPU-bound.
	renderSlots chan struct{}
}

// NewServer creates the HTTP server around a ready generator.
func NewServer(generator *passes.Generator, cfg *config.ServerEnvironment, logger observability.Logger) *Server {
	workers := cfg.RenderWorkers
	if workers < 1 {
		workers = 1
	}

	s := &Server{
		generator:   generator,
		config:      cfg,
		logger:      logger,
		router:      chi.NewRouter(),
		renderSlots: make(chan struct{}, workers),
	}

	s.setupMiddleware()
	s.registerRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.config.WriteTimeout))
	s.router.Use(s.instrument)
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/v1/passes", func(r chi.Router) {
		r.Post("/", s.handleGenerate)
		r.Post("/pending", s.handlePrepare)
		r.Get("/pending/{token}", s.handleRetrieve)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Service listening on {Address} in {Environment}", addr, s.config.Environment)
		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// acquireRenderSlot blocks until a render slot frees up or the request
// is cancelled. Returns false when the client went away.
func (s *Server) acquireRenderSlot(ctx context.Context) bool {
	select {
	case s.renderSlots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) releaseRenderSlot() {
	<-s.renderSlots
}
