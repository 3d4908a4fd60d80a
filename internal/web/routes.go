package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/cbir/internal/web/handlers"
	"github.com/kozaktomas/cbir/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	configHandler := handlers.NewConfigHandler(s.config, s.engine)
	imagesHandler := handlers.NewImagesHandler(s.config, s.engine, s.neighbors)
	searchHandler := handlers.NewSearchHandler(s.config, s.engine, sessionManager)

	// Health check and metrics (no session required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Config
		r.Get("/config", configHandler.Get)

		// Images
		r.Get("/images", imagesHandler.List)
		r.Get("/images/{id}", imagesHandler.Get)
		r.Get("/images/{id}/thumb/{size}", imagesHandler.Thumbnail)
		r.Get("/images/{id}/neighbors", imagesHandler.Neighbors)

		// Interactive retrieval, one session per browser
		r.Group(func(r chi.Router) {
			r.Use(middleware.WithSession(sessionManager))

			r.Post("/search", searchHandler.Search)
			r.Get("/results", searchHandler.Results)
			r.Put("/relevant/{id}", searchHandler.Mark)
			r.Post("/feedback", searchHandler.Feedback)
			r.Delete("/session", searchHandler.Reset)
		})
	})
}
