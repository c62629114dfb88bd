package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/models"
	"github.com/atkt1/rzgateway/internal/services"
	pkghttp "github.com/atkt1/rzgateway/pkg/http"
)

// SignInServiceInterface defines the interface for sign-in business logic
type SignInServiceInterface interface {
	SignIn(ctx context.Context, clientID, email, password, ipAddress, userAgent string) (*services.SignInResult, models.LimiterStatus, error)
	Status(ctx context.Context, clientID string) models.LimiterStatus
	Logout(email, clientID, ipAddress string)
}

// AuthHandler handles sign-in related HTTP requests
type AuthHandler struct {
	service      SignInServiceInterface
	cookieConfig auth.CookieConfig
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service SignInServiceInterface, cookieConfig auth.CookieConfig, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:      service,
		cookieConfig: cookieConfig,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Response DTOs

// LoginResponse represents a successful login
type LoginResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LimitInfo reports the attempt limiter state for the calling client
type LimitInfo struct {
	Blocked           bool  `json:"blocked"`
	RemainingAttempts int   `json:"remaining_attempts"`
	RetryAfterSeconds int64 `json:"retry_after_seconds"`
}

// LoginFailureResponse is returned for rejected logins so the dashboard can
// show remaining attempts and the block countdown without a second request
type LoginFailureResponse struct {
	Error   string    `json:"error"`
	Message string    `json:"message"`
	Limit   LimitInfo `json:"limit"`
}

// SessionResponse describes the current session
type SessionResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newLimitInfo(status models.LimiterStatus) LimitInfo {
	info := LimitInfo{
		Blocked:           status.Blocked,
		RemainingAttempts: status.RemainingAttempts,
	}
	if status.BlockTimeRemaining > 0 {
		info.RetryAfterSeconds = int64((status.BlockTimeRemaining + time.Second - 1) / time.Second)
	}
	return info
}

func writeLoginFailure(w http.ResponseWriter, statusCode int, errCode, message string, limit LimitInfo) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(LoginFailureResponse{
		Error:   errCode,
		Message: message,
		Limit:   limit,
	})
}

// Login handles a dashboard sign-in attempt
// @Summary Sign in
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} LoginFailureResponse
// @Failure 429 {object} LoginFailureResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	clientID := auth.GetClientIDFromContext(r)
	if clientID == "" {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	// Validate request
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	// Extract IP address and User-Agent for audit logging
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.Header.Get("User-Agent")

	result, status, err := h.service.SignIn(r.Context(), clientID, req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSignInBlocked):
			pkghttp.SetRetryAfter(w, status.BlockTimeRemaining)
			writeLoginFailure(w, http.StatusTooManyRequests, "rate_limit_exceeded",
				"Too many failed sign-in attempts. Please try again later.", newLimitInfo(status))
		case errors.Is(err, models.ErrUnauthorized):
			// The attempt that uses up the last slot still reports 401; the
			// block applies from the next submission on.
			if status.Blocked {
				pkghttp.SetRetryAfter(w, status.BlockTimeRemaining)
			}
			writeLoginFailure(w, http.StatusUnauthorized, "unauthorized",
				"Invalid email or password", newLimitInfo(status))
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	auth.SetSessionCookie(w, result.SessionToken, result.ExpiresAt, h.cookieConfig)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(LoginResponse{
		Email:     result.Email,
		ExpiresAt: result.ExpiresAt,
	})
}

// LimitStatus reports the attempt limiter state for the calling client.
// The login page polls this to drive its countdown, so it always returns 200
// even while the client is blocked.
// @Summary Attempt limiter status
// @Produce json
// @Success 200 {object} LimitInfo
// @Failure 500 {object} ErrorResponse
// @Router /auth/limit [get]
func (h *AuthHandler) LimitStatus(w http.ResponseWriter, r *http.Request) {
	clientID := auth.GetClientIDFromContext(r)
	if clientID == "" {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	status := h.service.Status(r.Context(), clientID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(newLimitInfo(status))
}

// Logout clears the session cookie. It does not require a valid session:
// an expired session still deserves a clean cookie jar.
// @Summary Sign out
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	email := ""
	if claims := auth.GetSessionFromContext(r); claims != nil {
		email = claims.Email
	}
	clientID := auth.GetClientIDFromContext(r)
	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	h.service.Logout(email, clientID, ipAddress)
	auth.ClearSessionCookie(w, h.cookieConfig)

	w.WriteHeader(http.StatusNoContent)
}

// Session returns the signed-in user for the dashboard shell
// @Summary Current session
// @Security SessionCookie
// @Produce json
// @Success 200 {object} SessionResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/session [get]
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetSessionFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Not signed in")
		return
	}

	resp := SessionResponse{Email: claims.Email}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
