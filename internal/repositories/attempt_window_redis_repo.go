package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atkt1/rzgateway/internal/models"
)

const attemptWindowKeyPrefix = "attempt_window:"

// RedisAttemptWindowRepository stores attempt windows as JSON values with a
// TTL derived from the window's expiry, so stale state ages out without a
// sweeper.
type RedisAttemptWindowRepository struct {
	client *redis.Client
}

// NewRedisAttemptWindowRepository creates a store backed by the given client
func NewRedisAttemptWindowRepository(client *redis.Client) *RedisAttemptWindowRepository {
	return &RedisAttemptWindowRepository{client: client}
}

// attemptWindowPayload is the stored JSON shape. The client ID lives in the
// key, not the value.
type attemptWindowPayload struct {
	AttemptCount int       `json:"attempt_count"`
	WindowStart  time.Time `json:"window_start"`
	BlockedUntil time.Time `json:"blocked_until"`
	UpdatedAt    time.Time `json:"updated_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// GetWindow loads the stored attempt window for a client. A value that fails
// to decode is dropped and reported as absent rather than poisoning every
// later read.
func (r *RedisAttemptWindowRepository) GetWindow(ctx context.Context, clientID string) (*models.AttemptWindow, error) {
	key := attemptWindowKey(clientID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attempt window: %w", err)
	}

	var payload attemptWindowPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		_ = r.client.Del(ctx, key).Err()
		return nil, models.ErrNotFound
	}

	return &models.AttemptWindow{
		ClientID:     clientID,
		AttemptCount: payload.AttemptCount,
		WindowStart:  payload.WindowStart,
		BlockedUntil: payload.BlockedUntil,
		UpdatedAt:    payload.UpdatedAt,
		ExpiresAt:    payload.ExpiresAt,
	}, nil
}

// SaveWindow stores the window with a TTL covering its remaining lifetime.
// The TTL comes from the window's own timestamps, not the wall clock, so the
// stored expiry and the key expiry always agree.
func (r *RedisAttemptWindowRepository) SaveWindow(ctx context.Context, window *models.AttemptWindow) error {
	key := attemptWindowKey(window.ClientID)

	ttl := window.ExpiresAt.Sub(window.UpdatedAt)
	if ttl <= 0 {
		// Already expired; nothing worth storing
		return r.client.Del(ctx, key).Err()
	}

	payload := attemptWindowPayload{
		AttemptCount: window.AttemptCount,
		WindowStart:  window.WindowStart,
		BlockedUntil: window.BlockedUntil,
		UpdatedAt:    window.UpdatedAt,
		ExpiresAt:    window.ExpiresAt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode attempt window: %w", err)
	}

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save attempt window: %w", err)
	}

	return nil
}

// DeleteWindow removes a client's window. Deleting a window that does not
// exist is not an error.
func (r *RedisAttemptWindowRepository) DeleteWindow(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, attemptWindowKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to delete attempt window: %w", err)
	}
	return nil
}

// HealthCheck pings the backing server
func (r *RedisAttemptWindowRepository) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

func attemptWindowKey(clientID string) string {
	return attemptWindowKeyPrefix + clientID
}
