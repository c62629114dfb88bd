package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/handlers"
	"github.com/atkt1/rzgateway/internal/repositories"
	"github.com/atkt1/rzgateway/internal/services"
)

func defaultLimiterConfig() services.AttemptLimitConfig {
	return services.AttemptLimitConfig{
		MaxAttempts:    5,
		WindowDuration: 15 * time.Minute,
		BlockDuration:  15 * time.Minute,
	}
}

func newFlowServer(t *testing.T, cfg services.AttemptLimitConfig) *TestServer {
	t.Helper()
	resetTables(t)

	repo := repositories.NewAttemptWindowRepository(testDB.DB)
	email, password := TestCredentials()
	ts, err := NewTestServer(repo, cfg, email, password)
	require.NoError(t, err)
	t.Cleanup(ts.Close)
	return ts
}

func TestSignInFlow_LockoutAfterRepeatedFailures(t *testing.T) {
	ts := newFlowServer(t, defaultLimiterConfig())
	email, _ := TestCredentials()

	// Four bad passwords burn through the budget one attempt at a time
	for i := 1; i <= 4; i++ {
		resp, err := ts.Login(email, "wrong-password")
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Header.Get("Retry-After"))

		var failure handlers.LoginFailureResponse
		require.NoError(t, ParseJSONResponse(resp, &failure))
		assert.Equal(t, "unauthorized", failure.Error)
		assert.False(t, failure.Limit.Blocked)
		assert.Equal(t, 5-i, failure.Limit.RemainingAttempts)
	}

	// The fifth failure is still a 401, but it arms the block
	resp, err := ts.Login(email, "wrong-password")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var fifth handlers.LoginFailureResponse
	require.NoError(t, ParseJSONResponse(resp, &fifth))
	assert.True(t, fifth.Limit.Blocked)
	assert.Equal(t, 0, fifth.Limit.RemainingAttempts)
	assert.Greater(t, fifth.Limit.RetryAfterSeconds, int64(0))
	assert.LessOrEqual(t, fifth.Limit.RetryAfterSeconds, int64(900))

	// From now on even the right password is turned away at the gate
	resp, err = ts.Login(email, "correct-horse-battery")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	var blocked handlers.LoginFailureResponse
	require.NoError(t, ParseJSONResponse(resp, &blocked))
	assert.Equal(t, "rate_limit_exceeded", blocked.Error)
	assert.True(t, blocked.Limit.Blocked)

	// The poll endpoint tells the login page the same story
	resp, err = ts.Request(http.MethodGet, "/auth/limit", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var limit handlers.LimitInfo
	require.NoError(t, ParseJSONResponse(resp, &limit))
	assert.True(t, limit.Blocked)
	assert.Equal(t, 0, limit.RemainingAttempts)
	assert.Greater(t, limit.RetryAfterSeconds, int64(0))

	// Logging out is not a back door around the block
	resp, err = ts.Request(http.MethodPost, "/auth/logout", nil)
	require.NoError(t, err)
	DrainBody(resp)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = ts.Request(http.MethodGet, "/auth/limit", nil)
	require.NoError(t, err)
	var afterLogout handlers.LimitInfo
	require.NoError(t, ParseJSONResponse(resp, &afterLogout))
	assert.True(t, afterLogout.Blocked)

	assert.Nil(t, ts.Cookie(auth.SessionCookieName))
}

func TestSignInFlow_SuccessClearsWindow(t *testing.T) {
	ts := newFlowServer(t, defaultLimiterConfig())
	email, password := TestCredentials()

	for i := 0; i < 2; i++ {
		resp, err := ts.Login(email, "wrong-password")
		require.NoError(t, err)
		DrainBody(resp)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, err := ts.Login(email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login handlers.LoginResponse
	require.NoError(t, ParseJSONResponse(resp, &login))
	assert.Equal(t, email, login.Email)
	assert.False(t, login.ExpiresAt.IsZero())
	assert.NotNil(t, ts.Cookie(auth.SessionCookieName))

	// Success wipes the failures, so the budget is back to full
	resp, err = ts.Request(http.MethodGet, "/auth/limit", nil)
	require.NoError(t, err)
	var limit handlers.LimitInfo
	require.NoError(t, ParseJSONResponse(resp, &limit))
	assert.False(t, limit.Blocked)
	assert.Equal(t, 5, limit.RemainingAttempts)

	resp, err = ts.Request(http.MethodGet, "/auth/session", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var session handlers.SessionResponse
	require.NoError(t, ParseJSONResponse(resp, &session))
	assert.Equal(t, email, session.Email)

	resp, err = ts.Request(http.MethodPost, "/auth/logout", nil)
	require.NoError(t, err)
	DrainBody(resp)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, ts.Cookie(auth.SessionCookieName))

	resp, err = ts.Request(http.MethodGet, "/auth/session", nil)
	require.NoError(t, err)
	DrainBody(resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSignInFlow_BlockExpires(t *testing.T) {
	cfg := services.AttemptLimitConfig{
		MaxAttempts:    2,
		WindowDuration: 15 * time.Minute,
		BlockDuration:  2 * time.Second,
	}
	ts := newFlowServer(t, cfg)
	email, password := TestCredentials()

	for i := 0; i < 2; i++ {
		resp, err := ts.Login(email, "wrong-password")
		require.NoError(t, err)
		DrainBody(resp)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, err := ts.Login(email, password)
	require.NoError(t, err)
	DrainBody(resp)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Real clock here: wait out the short block
	time.Sleep(2500 * time.Millisecond)

	resp, err = ts.Login(email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login handlers.LoginResponse
	require.NoError(t, ParseJSONResponse(resp, &login))
	assert.Equal(t, email, login.Email)
}

func TestSignInFlow_ClientsAreIsolated(t *testing.T) {
	cfg := defaultLimiterConfig()
	blockedClient := newFlowServer(t, cfg)
	email, password := TestCredentials()

	for i := 0; i < 5; i++ {
		resp, err := blockedClient.Login(email, "wrong-password")
		require.NoError(t, err)
		DrainBody(resp)
	}

	resp, err := blockedClient.Login(email, password)
	require.NoError(t, err)
	DrainBody(resp)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// A different browser shares the store but not the block
	repo := repositories.NewAttemptWindowRepository(testDB.DB)
	otherClient, err := NewTestServer(repo, cfg, email, password)
	require.NoError(t, err)
	defer otherClient.Close()

	resp, err = otherClient.Login(email, password)
	require.NoError(t, err)
	DrainBody(resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
