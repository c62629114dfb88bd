package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/atkt1/rzgateway/internal/models"
	pkghttp "github.com/atkt1/rzgateway/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing session claims in context
	SessionContextKey contextKey = "session"

	// ClientIDContextKey is the key for storing the limiter identity in context
	ClientIDContextKey contextKey = "client_id"
)

// RequireSession validates the session token and injects its claims into the
// request context. Browsers send the session cookie; API clients may use a
// Bearer header instead.
func RequireSession(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractSessionToken(r)
			if tokenString == "" {
				pkghttp.WriteUnauthorized(w, "Not signed in")
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractSessionToken prefers the session cookie and falls back to a Bearer
// Authorization header
func extractSessionToken(r *http.Request) string {
	if token, err := GetSessionCookie(r); err == nil && token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}

	return parts[1]
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
