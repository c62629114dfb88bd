package repositories

import (
	"context"
	"time"

	"github.com/atkt1/rzgateway/internal/database"
	"github.com/atkt1/rzgateway/internal/models"
)

// AttemptWindowRepository handles database operations for sign-in attempt
// windows. Each client has at most one row; writes are single-statement
// upserts so concurrent requests for the same client resolve last-write-wins.
type AttemptWindowRepository struct {
	db *database.DB
}

// NewAttemptWindowRepository creates a new AttemptWindowRepository
func NewAttemptWindowRepository(db *database.DB) *AttemptWindowRepository {
	return &AttemptWindowRepository{db: db}
}

// GetWindow loads the stored attempt window for a client
func (r *AttemptWindowRepository) GetWindow(ctx context.Context, clientID string) (*models.AttemptWindow, error) {
	query := `
		SELECT client_id, attempt_count, window_start, blocked_until, updated_at, expires_at
		FROM attempt_windows
		WHERE client_id = $1
	`

	window := &models.AttemptWindow{}
	var blockedUntil *time.Time

	err := r.db.Pool.QueryRow(ctx, query, clientID).Scan(
		&window.ClientID,
		&window.AttemptCount,
		&window.WindowStart,
		&blockedUntil,
		&window.UpdatedAt,
		&window.ExpiresAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if blockedUntil != nil {
		window.BlockedUntil = *blockedUntil
	}

	return window, nil
}

// SaveWindow inserts or replaces the attempt window row for a client
func (r *AttemptWindowRepository) SaveWindow(ctx context.Context, window *models.AttemptWindow) error {
	query := `
		INSERT INTO attempt_windows (client_id, attempt_count, window_start, blocked_until, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (client_id) DO UPDATE SET
			attempt_count = EXCLUDED.attempt_count,
			window_start  = EXCLUDED.window_start,
			blocked_until = EXCLUDED.blocked_until,
			updated_at    = EXCLUDED.updated_at,
			expires_at    = EXCLUDED.expires_at
	`

	// An unblocked window stores NULL, not the zero time
	var blockedUntil *time.Time
	if !window.BlockedUntil.IsZero() {
		blockedUntil = &window.BlockedUntil
	}

	_, err := r.db.Pool.Exec(ctx, query,
		window.ClientID,
		window.AttemptCount,
		window.WindowStart,
		blockedUntil,
		window.UpdatedAt,
		window.ExpiresAt,
	)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// DeleteWindow removes a client's attempt window. Deleting a window that
// does not exist is not an error.
func (r *AttemptWindowRepository) DeleteWindow(ctx context.Context, clientID string) error {
	query := `DELETE FROM attempt_windows WHERE client_id = $1`

	_, err := r.db.Pool.Exec(ctx, query, clientID)
	if err != nil {
		return database.MapPostgresError(err)
	}

	return nil
}

// DeleteExpiredWindows removes windows whose stored state no longer affects
// any decision
func (r *AttemptWindowRepository) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	query := `DELETE FROM attempt_windows WHERE expires_at <= CURRENT_TIMESTAMP`

	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}

	return tag.RowsAffected(), nil
}
