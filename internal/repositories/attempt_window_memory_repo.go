package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/atkt1/rzgateway/internal/models"
)

// MemoryAttemptWindowRepository keeps attempt windows in process memory.
// Suitable for development and single-instance deployments; state is lost on
// restart, which only means a client's failure count starts over.
type MemoryAttemptWindowRepository struct {
	mu      sync.RWMutex
	windows map[string]models.AttemptWindow
}

// NewMemoryAttemptWindowRepository creates an empty in-memory store
func NewMemoryAttemptWindowRepository() *MemoryAttemptWindowRepository {
	return &MemoryAttemptWindowRepository{
		windows: make(map[string]models.AttemptWindow),
	}
}

// GetWindow returns a copy of the stored window so callers cannot mutate
// shared state
func (r *MemoryAttemptWindowRepository) GetWindow(ctx context.Context, clientID string) (*models.AttemptWindow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	window, ok := r.windows[clientID]
	if !ok {
		return nil, models.ErrNotFound
	}

	return &window, nil
}

// SaveWindow stores a copy of the window, replacing any previous state for
// the client
func (r *MemoryAttemptWindowRepository) SaveWindow(ctx context.Context, window *models.AttemptWindow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.windows[window.ClientID] = *window
	return nil
}

// DeleteWindow removes a client's window. Deleting a window that does not
// exist is not an error.
func (r *MemoryAttemptWindowRepository) DeleteWindow(ctx context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.windows, clientID)
	return nil
}

// DeleteExpiredWindows removes windows whose expiry has passed
func (r *MemoryAttemptWindowRepository) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var removed int64
	for clientID, window := range r.windows {
		if !window.ExpiresAt.After(now) {
			delete(r.windows, clientID)
			removed++
		}
	}

	return removed, nil
}

// HealthCheck always succeeds; there is no backing service to reach
func (r *MemoryAttemptWindowRepository) HealthCheck(ctx context.Context) error {
	return nil
}
