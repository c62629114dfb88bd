package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/models"
	"github.com/atkt1/rzgateway/internal/services"
	pkghttp "github.com/atkt1/rzgateway/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithClientIDContext stamps a client identifier on the request context,
// standing in for the EnsureClientID middleware
func WithClientIDContext(r *http.Request, clientID string) *http.Request {
	ctx := context.WithValue(r.Context(), auth.ClientIDContextKey, clientID)
	return r.WithContext(ctx)
}

// WithSessionContext adds session claims to the request context, standing in
// for the RequireSession middleware
func WithSessionContext(r *http.Request, email string, expiresAt time.Time) *http.Request {
	claims := &models.SessionClaims{
		Type:  "session",
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	ctx := context.WithValue(r.Context(), auth.SessionContextKey, claims)
	return r.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	contentType := w.Header().Get("Content-Type")
	assert.Equal(t, "application/json", contentType, "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// FindCookie returns the named cookie from a recorded response, or nil
func FindCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

// MockSignInService implements SignInServiceInterface for testing
type MockSignInService struct {
	SignInFunc func(ctx context.Context, clientID, email, password, ipAddress, userAgent string) (*services.SignInResult, models.LimiterStatus, error)
	StatusFunc func(ctx context.Context, clientID string) models.LimiterStatus
	LogoutFunc func(email, clientID, ipAddress string)
}

func (m *MockSignInService) SignIn(ctx context.Context, clientID, email, password, ipAddress, userAgent string) (*services.SignInResult, models.LimiterStatus, error) {
	if m.SignInFunc == nil {
		return nil, models.LimiterStatus{}, models.ErrUnauthorized
	}
	return m.SignInFunc(ctx, clientID, email, password, ipAddress, userAgent)
}

func (m *MockSignInService) Status(ctx context.Context, clientID string) models.LimiterStatus {
	if m.StatusFunc == nil {
		return models.LimiterStatus{}
	}
	return m.StatusFunc(ctx, clientID)
}

func (m *MockSignInService) Logout(email, clientID, ipAddress string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(email, clientID, ipAddress)
	}
}
