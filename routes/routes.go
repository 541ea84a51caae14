package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/banking-api/app"
	"github.com/upb/banking-api/handlers"
	"github.com/upb/banking-api/middleware"
	"github.com/upb/banking-api/services/authz"
	"github.com/upb/banking-api/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(deps.Logger, deps.Metrics))
	r.Use(chimw.Recoverer)
	if timeout := deps.Config.Server.RequestTimeout; timeout > 0 {
		r.Use(chimw.Timeout(timeout))
	}

	// CORS middleware
	origins := deps.Config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "https://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	ac := deps.AccessControl
	health := handlers.NewHealthHandler(deps.Logger, readinessChecks(deps)...)
	authHandler := handlers.NewAuthHandler(deps.Accounts, deps.Metrics, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.Accounts, deps.Logger)

	// Health check endpoints
	r.Get("/health", health.HandleHealth)
	r.Get("/health/ready", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Public, but throttled per client
			r.With(ac.RateLimit).Post("/login", authHandler.HandleLogin)
			r.With(ac.RateLimit).Post("/register", authHandler.HandleRegister)

			r.With(ac.Protect(authz.RequireActive())).Get("/test-token", authHandler.HandleTestToken)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(ac.Protect(authz.RequireActive()))
			r.Get("/me", userHandler.HandleMe)
			r.Put("/me/password", userHandler.HandleChangePassword)
			r.Get("/{id}", userHandler.HandleGetUser)
		})

		r.With(ac.Protect(authz.RequireActive(), authz.RequirePermission("read:transactions"))).
			Get("/transactions", userHandler.HandleListTransactions)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}

func readinessChecks(deps *app.Dependencies) []handlers.DependencyCheck {
	var checks []handlers.DependencyCheck
	if deps.DB != nil {
		checks = append(checks, handlers.DependencyCheck{Name: "database", Ping: deps.DB.HealthCheck})
	}
	if deps.Cache != nil {
		checks = append(checks, handlers.CacheCheck(deps.Cache))
	}
	return checks
}
