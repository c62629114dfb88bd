package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/atkt1/rzgateway/pkg/http"
)

// RateLimitConfig holds transport-level rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultLoginRateLimit caps login submissions per client IP. The attempt
// limiter tracks failures over a much longer window; this cap only blunts
// scripted flooding of the endpoint itself, so it sits above the attempt
// budget and stays invisible to ordinary users.
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
	}
}

// DefaultPollRateLimit leaves headroom for the login page polling the
// limiter status once per second.
func DefaultPollRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 120,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
		}),
	)
}
