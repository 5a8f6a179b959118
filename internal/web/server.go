// Package web hosts the curator JSON API.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/media-curator/media-curator/internal/cluster"
	"github.com/media-curator/media-curator/internal/dedupe"
	"github.com/media-curator/media-curator/internal/features"
	"github.com/media-curator/media-curator/internal/ingest"
	"github.com/media-curator/media-curator/internal/store"
	"github.com/media-curator/media-curator/internal/web/middleware"
)

// Deps carries everything the API serves. All of it is constructed once
// by top-level wiring and injected here.
type Deps struct {
	Store       *store.DualStore
	Provider    features.Provider
	Pipeline    *ingest.Pipeline
	Detector    *dedupe.Detector
	Clusterer   *cluster.Clusterer
	LibraryRoot string
}

// Server represents the web server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
}

// NewServer creates a new web server
func NewServer(deps Deps, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		router: r,
		deps:   deps,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // duplicate scans can run long
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting curator API on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down curator API...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
