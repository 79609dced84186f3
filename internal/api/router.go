package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/kaira-dev/kaira/internal/api/auth"
	"github.com/kaira-dev/kaira/internal/api/dashboard"
	"github.com/kaira-dev/kaira/internal/api/middleware"
	"github.com/kaira-dev/kaira/internal/api/projects"
	"github.com/kaira-dev/kaira/internal/api/users"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Create rate limiters
	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.PrometheusMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes, all public with IP rate limiting. Logout stays
		// unauthenticated so a client holding only an expired access
		// token can still clear its logged-in flag.
		r.Route("/auth", func(r chi.Router) {
			authHandler := auth.NewHandler(s.storage, s.tokens)

			r.Use(middleware.RateLimitByIP(ipLimiter))
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		// Everything below requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(s.tokens))
			r.Use(middleware.RateLimitByUser(userLimiter))

			userHandler := users.NewHandler(s.storage)
			r.Route("/profile", func(r chi.Router) {
				r.Get("/", userHandler.GetProfile)
				r.Put("/", userHandler.UpdateProfile)
			})

			projectHandler := projects.NewHandler(s.storage, s.files, s.converter, s.launcher)
			r.Route("/projects", func(r chi.Router) {
				r.Post("/", projectHandler.Create)
				r.Get("/", projectHandler.List)
				r.Get("/check-name", projectHandler.CheckName)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.GetByID)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)
					r.Post("/image", projectHandler.UploadImage)
					r.Post("/model", projectHandler.UploadModel)
					r.Post("/convert", projectHandler.Convert)
				})
			})

			dashHandler := dashboard.NewHandler(s.storage)
			r.Get("/dashboard", dashHandler.Summary)

			r.Get("/vr/launch", projectHandler.LaunchVR)
		})
	})

	// Stored artifacts, served as-is
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.files.Root())))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	// Health check (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})

	return r
}
