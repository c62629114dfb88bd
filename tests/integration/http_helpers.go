package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/handlers"
	"github.com/atkt1/rzgateway/internal/identity"
	custommw "github.com/atkt1/rzgateway/internal/middleware"
	"github.com/atkt1/rzgateway/internal/routes"
	"github.com/atkt1/rzgateway/internal/services"
	pkghttp "github.com/atkt1/rzgateway/pkg/http"
	pkglogger "github.com/atkt1/rzgateway/pkg/logger"
)

// TestServer wraps an httptest.Server wired the same way cmd/api builds the
// production router. The client keeps a cookie jar, so the client identifier
// issued on the first request rides along on every later one.
//
// The transport rate limit counters live inside the router, so each test
// should build its own server rather than share one.
type TestServer struct {
	Server  *httptest.Server
	Client  *http.Client
	BaseURL string
}

// NewTestServer builds a gateway around the given attempt window store. The
// static identity backend accepts exactly one email/password pair.
func NewTestServer(repo services.AttemptWindowRepository, limiterCfg services.AttemptLimitConfig, staticEmail, staticPassword string) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// MinCost keeps repeated sign-ins fast
	hash, err := bcrypt.GenerateFromPassword([]byte(staticPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash test password: %w", err)
	}
	authenticator := identity.NewStaticAuthenticator(staticEmail, string(hash))

	tokenManager := auth.NewTokenManager("integration-test-secret-32-chars!!", time.Hour)
	auditLogger := pkglogger.NewAuditLogger(logger)
	failureDelay := auth.NewUniformDelay(0, 0)

	limiter := services.NewAttemptLimitService(repo, limiterCfg, logger)
	signInService := services.NewSignInService(limiter, authenticator, tokenManager, failureDelay, logger, auditLogger)

	// Secure cookies never make it back through the jar over plain HTTP
	cookieConfig := auth.CookieConfig{
		Secure:   false,
		SameSite: "strict",
	}
	ipConfig := pkghttp.NewIPConfig(nil)
	authHandler := handlers.NewAuthHandler(signInService, cookieConfig, ipConfig)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(custommw.SecurityHeaders(custommw.SecurityHeadersConfig{Env: "test"}))
	router.Use(auth.EnsureClientID(cookieConfig))
	router.Use(chimiddleware.Recoverer)

	routes.RegisterRoutes(router, authHandler, tokenManager)

	server := httptest.NewServer(router)

	jar, err := cookiejar.New(nil)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &TestServer{
		Server:  server,
		Client:  &http.Client{Jar: jar},
		BaseURL: server.URL,
	}, nil
}

// Close shuts down the underlying test server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// Request sends a JSON request through the cookie-carrying client
func (ts *TestServer) Request(method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return ts.Client.Do(req)
}

// Login posts credentials to the sign-in endpoint
func (ts *TestServer) Login(email, password string) (*http.Response, error) {
	return ts.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Cookie returns the named cookie held in the client jar, or nil
func (ts *TestServer) Cookie(name string) *http.Cookie {
	u, err := url.Parse(ts.BaseURL)
	if err != nil {
		return nil
	}
	for _, c := range ts.Client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ParseJSONResponse decodes the response body into v and closes it
func ParseJSONResponse(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// DrainBody discards and closes a response body so connections get reused
func DrainBody(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
