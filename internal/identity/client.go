package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/atkt1/rzgateway/internal/models"
)

// Client verifies credentials against the upstream identity service. The
// upstream response is treated as opaque: any non-2xx authentication status
// is a plain failure with no distinction the caller could leak to users.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an identity client for the given base URL
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Authenticate submits the credentials upstream. It returns nil on success,
// models.ErrUnauthorized when the upstream rejects the credentials, and a
// transport error for anything else.
func (c *Client) Authenticate(ctx context.Context, email, password string) error {
	body, err := json.Marshal(signInRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("failed to encode sign-in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/signin", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return models.ErrUnauthorized
	default:
		c.logger.Error("identity service returned unexpected status",
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}
}
