package integration

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atkt1/rzgateway/internal/models"
)

// TestClientID generates a unique client identifier per test
func TestClientID(suffix string) string {
	return fmt.Sprintf("client-%s-%s", suffix, uuid.New().String()[:8])
}

// TestCredentials returns the email/password pair the static identity
// backend in NewTestServer is configured with
func TestCredentials() (email, password string) {
	return "owner@example.com", "correct-horse-battery"
}

// NewTestWindow builds an attempt window with sensible defaults. Timestamps
// are truncated to microseconds because that is all Postgres keeps.
func NewTestWindow(clientID string, attempts int) *models.AttemptWindow {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.AttemptWindow{
		ClientID:     clientID,
		AttemptCount: attempts,
		WindowStart:  now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(15 * time.Minute),
	}
}
