package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"route-planner/internal/api/handlers"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(planner handlers.Planner, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(loggingMiddleware(logger))

	plans := &handlers.PlanHandler{Planner: planner, Logger: logger}

	r.Get("/health", handlers.Health)
	r.Route("/tenants/{tenant}/plans/{date}", func(r chi.Router) {
		r.Post("/clusters", plans.Clusters)
		r.Post("/last-mile", plans.LastMile)
		r.Post("/transfers", plans.Transfers)
	})

	return r
}
