package api

import (
	"encoding/json"
	"net/http"

	"github.com/finsight/finsight/internal/api/handlers"
	"github.com/finsight/finsight/internal/api/middleware"
	"github.com/finsight/finsight/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Input collaborator
		r.Route("/inputs", func(r chi.Router) {
			r.Get("/", h.GetInputs)
			r.Put("/", h.PutInputs)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", h.GetGoals)
			r.Put("/", h.PutGoals)
		})

		// Presentation collaborator
		r.Get("/snapshot", h.GetSnapshot)
		r.Get("/scenarios", h.GetScenarios)
		r.Route("/actions", func(r chi.Router) {
			r.Get("/", h.GetActions)
			r.Post("/{actionId}/complete", h.CompleteAction)
		})
		r.Get("/insights", h.GetInsights)
		r.Get("/state", h.GetAgentState)

		// Intervention activity log + controller triggers
		r.Route("/interventions", func(r chi.Router) {
			r.Get("/", h.ListInterventions)
			r.Post("/{interventionId}/respond", h.RespondIntervention)
		})
		r.Post("/controller/run", h.RunController)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "finsight",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "finsight",
		})
	}
}
