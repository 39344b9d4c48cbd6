package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/butterfly-chat/backend/app"
	"github.com/upb/butterfly-chat/backend/handlers"
	"github.com/upb/butterfly-chat/backend/middleware"
	"github.com/upb/butterfly-chat/backend/utils"
)

// SetupRoutes configures all application routes and middleware.
// There is no request timeout middleware: chat responses stream for as long
// as the model keeps generating and end when the client disconnects.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "X-Vercel-AI-Data-Stream"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// Chat endpoint at the path existing chat clients post to
	r.Post("/api/chat", handlers.ChatHandler(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handlers.StatusHandler(deps))
		r.Post("/chat", handlers.ChatHandler(deps))
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}
