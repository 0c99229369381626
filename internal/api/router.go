package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/mtg-catalog/internal/api/handlers"
	"github.com/ramonehamilton/mtg-catalog/internal/api/response"
	"github.com/ramonehamilton/mtg-catalog/internal/metrics"
	"github.com/ramonehamilton/mtg-catalog/internal/version"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Unversioned operational endpoints
	s.router.Get("/health", s.healthCheck)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))

	s.router.Route("/api/v1", func(r chi.Router) {
		catalogHandler := handlers.NewCatalogHandler(s.service, s.logger)
		r.Route("/sets", func(r chi.Router) {
			r.Get("/", catalogHandler.ListSets)
			r.Get("/{code}", catalogHandler.GetSet)
			r.Get("/{code}/cards", catalogHandler.ListSetCards)
		})
		r.Get("/cards/{cardID}", catalogHandler.GetCard)

		userHandler := handlers.NewUserHandler(s.service, s.logger)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/sets", userHandler.ListSets)
			r.Get("/sets/{code}/cards", userHandler.ListSetCards)
			r.Get("/inventory", userHandler.ListInventory)
			r.Put("/inventory/{cardID}", userHandler.SetQuantity)
			r.Get("/summary", userHandler.Summary)
		})
	})
}

// healthCheck returns server health status.
func (s *Server) healthCheck(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "mtg-catalog-api",
		"version": version.GetVersion(),
	})
}
