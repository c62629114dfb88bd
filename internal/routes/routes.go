package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/handlers"
	"github.com/atkt1/rzgateway/internal/middleware"
	pkghttp "github.com/atkt1/rzgateway/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	tokenManager *auth.TokenManager,
) {
	// Public routes - no session required
	router.With(middleware.RateLimitByIP(middleware.DefaultLoginRateLimit())).
		Post("/auth/login", authHandler.Login)

	// The login page polls this while counting down a block, so it gets the
	// generous poll budget
	router.With(middleware.RateLimitByIP(middleware.DefaultPollRateLimit())).
		Get("/auth/limit", authHandler.LimitStatus)

	// Logout works without a valid session: clearing the cookie is the point
	router.Post("/auth/logout", authHandler.Logout)

	// Protected routes - session required
	router.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokenManager))

		r.Get("/auth/session", authHandler.Session)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
}
