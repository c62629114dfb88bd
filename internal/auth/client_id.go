package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// EnsureClientID guarantees every request carries a stable client identifier.
// A valid identifier from the cookie is reused; anything missing or malformed
// gets a fresh one. The identifier is what the attempt limiter keys on, so it
// must be server-issued, never client-chosen.
func EnsureClientID(config CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID, err := GetClientIDCookie(r)
			if err != nil || !isValidClientID(clientID) {
				clientID = uuid.New().String()
				SetClientIDCookie(w, clientID, config)
			}

			ctx := context.WithValue(r.Context(), ClientIDContextKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIDFromContext extracts the client identifier from request context.
// Returns empty string if EnsureClientID did not run.
func GetClientIDFromContext(r *http.Request) string {
	clientID, ok := r.Context().Value(ClientIDContextKey).(string)
	if !ok {
		return ""
	}
	return clientID
}

// isValidClientID accepts only identifiers this gateway could have issued
func isValidClientID(clientID string) bool {
	_, err := uuid.Parse(clientID)
	return err == nil
}
