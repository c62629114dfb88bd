package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredWindowDeleter removes attempt windows whose expiry has passed.
// Both the Postgres and in-memory repositories implement it; the Redis store
// expires keys itself and never needs a sweeper.
type ExpiredWindowDeleter interface {
	DeleteExpiredWindows(ctx context.Context) (int64, error)
}

// WindowSweeper periodically removes expired attempt windows from the store.
// Expiry is already enforced lazily on read; the sweeper only keeps the store
// from accumulating rows for clients that never come back.
type WindowSweeper struct {
	repo     ExpiredWindowDeleter
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewWindowSweeper creates a new window sweeper
func NewWindowSweeper(repo ExpiredWindowDeleter, logger *slog.Logger, interval time.Duration) *WindowSweeper {
	return &WindowSweeper{
		repo:     repo,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep. It blocks until Stop is called or the
// context is cancelled, so callers run it in a goroutine.
func (ws *WindowSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(ws.interval)
	defer ticker.Stop()

	// Run immediately on startup
	ws.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			ws.sweep(ctx)
		case <-ws.stopCh:
			ws.logger.Info("window sweeper stopped")
			return
		case <-ctx.Done():
			ws.logger.Info("window sweeper context cancelled")
			return
		}
	}
}

func (ws *WindowSweeper) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed, err := ws.repo.DeleteExpiredWindows(sweepCtx)
	if err != nil {
		ws.logger.Error("failed to sweep expired attempt windows", slog.Any("error", err))
		return
	}

	if removed > 0 {
		ws.logger.Info("expired attempt windows swept", slog.Int64("windows_removed", removed))
	}
}

// Stop signals the sweeper to stop
func (ws *WindowSweeper) Stop() {
	close(ws.stopCh)
}
