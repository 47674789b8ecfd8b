package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/postflow/aicore/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware. No router-level timeout: video generation holds the
	// connection open until the provider task finishes, bounded by the
	// per-adapter overall deadline.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealthz)
	r.Get("/readyz", deps.HealthHandler.HandleReadyz)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		if deps.AuthMiddleware != nil {
			r.Use(deps.AuthMiddleware.RequireAuth)
		}

		r.Get("/providers", deps.GenerateHandler.HandleListProviders)

		r.Route("/generate", func(r chi.Router) {
			r.Post("/text", deps.GenerateHandler.HandleGenerateText)
			r.Post("/image", deps.GenerateHandler.HandleGenerateImage)
			r.Post("/video", deps.GenerateHandler.HandleGenerateVideo)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
