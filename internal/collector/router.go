package collector

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new chi router with all collector endpoints.
// metrics and ws are mounted when non-nil.
func NewRouter(handler *Handler, metrics http.Handler, ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()

	// middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// basic cors
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS", "DELETE"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// health check
	r.Get("/health", handler.Health)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	if ws != nil {
		r.Get("/ws", ws)
	}

	// api v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/harvest", handler.StartHarvest)
		r.Delete("/harvest/current", handler.StopHarvest)
		r.Get("/harvest/status", handler.Status)

		r.Get("/auth/status", handler.AuthStatus)
	})

	return r
}
