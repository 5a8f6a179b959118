package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/media-curator/media-curator/internal/web/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	mediaHandler := handlers.NewMediaHandler(s.deps.Store)
	searchHandler := handlers.NewSearchHandler(s.deps.Store, s.deps.Provider)
	scanHandler := handlers.NewScanHandler(s.deps.Pipeline, s.deps.LibraryRoot)
	duplicatesHandler := handlers.NewDuplicatesHandler(s.deps.Detector)
	clustersHandler := handlers.NewClustersHandler(s.deps.Store, s.deps.Clusterer)
	statsHandler := handlers.NewStatsHandler(s.deps.Store)
	rebuildHandler := handlers.NewRebuildHandler(s.deps.Store)

	// Health check and metrics, outside the API prefix
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		// Media
		r.Get("/media", mediaHandler.List)
		r.Get("/media/{id}", mediaHandler.Get)
		r.Delete("/media/{id}", mediaHandler.Delete)

		// Search
		r.Post("/search", searchHandler.Search)

		// Ingestion
		r.Post("/scan", scanHandler.Start)
		r.Get("/scan/status", scanHandler.Status)

		// Duplicates
		r.Post("/duplicates/scan", duplicatesHandler.Scan)

		// Face clusters
		r.Post("/clusters/run", clustersHandler.Run)
		r.Get("/clusters/{id}/faces", clustersHandler.Faces)
		r.Get("/clusters/{id}/media", clustersHandler.Media)

		// Maintenance
		r.Get("/stats", statsHandler.Get)
		r.Post("/rebuild", rebuildHandler.Rebuild)
	})
}
