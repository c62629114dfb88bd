package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atkt1/rzgateway/internal/models"
)

// AttemptWindowRepository defines the interface for attempt window persistence
type AttemptWindowRepository interface {
	GetWindow(ctx context.Context, clientID string) (*models.AttemptWindow, error)
	SaveWindow(ctx context.Context, window *models.AttemptWindow) error
	DeleteWindow(ctx context.Context, clientID string) error
}

// AttemptLimitConfig holds the thresholds for the sign-in attempt limiter
type AttemptLimitConfig struct {
	MaxAttempts    int           // Failed attempts allowed before a block
	WindowDuration time.Duration // How long failures count against the limit
	BlockDuration  time.Duration // How long a block lasts once triggered
}

// AttemptLimitService tracks failed sign-in attempts per client and blocks
// further submissions once the limit is reached. Store failures degrade to
// allowing the attempt; the upstream identity service keeps its own
// throttling.
type AttemptLimitService struct {
	repo   AttemptWindowRepository
	config AttemptLimitConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewAttemptLimitService creates a new AttemptLimitService
func NewAttemptLimitService(repo AttemptWindowRepository, config AttemptLimitConfig, logger *slog.Logger) *AttemptLimitService {
	return &AttemptLimitService{
		repo:   repo,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the service's time source
// Call after the service is created; tests use it to step through windows
func (s *AttemptLimitService) SetClock(now func() time.Time) {
	s.now = now
}

// Status reports the client's current limiter state without modifying it.
// An expired window or a served block reads as clear; store errors also read
// as clear so a broken store never blocks sign-in.
func (s *AttemptLimitService) Status(ctx context.Context, clientID string) models.LimiterStatus {
	now := s.now()

	window, err := s.repo.GetWindow(ctx, clientID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Warn("failed to load attempt window",
				slog.String("client_id", clientID),
				slog.Any("error", err))
		}
		return s.ClearStatus()
	}

	return s.statusAt(window, now)
}

// RecordAttempt registers one failed sign-in for the client and returns the
// resulting state. Reaching the limit sets the block deadline; while a block
// is active further failures neither extend nor shorten it. The returned
// error is advisory, callers log it and continue.
func (s *AttemptLimitService) RecordAttempt(ctx context.Context, clientID string) (models.LimiterStatus, error) {
	now := s.now()

	window, err := s.repo.GetWindow(ctx, clientID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		window = &models.AttemptWindow{ClientID: clientID}
	case err != nil:
		// Without the stored window an increment could overwrite an active
		// block, so leave state untouched.
		return s.ClearStatus(), fmt.Errorf("failed to load attempt window: %w", err)
	case window.BlockedAt(now):
		return s.statusAt(window, now), nil
	case !window.BlockedUntil.IsZero() || window.ExpiredAt(now, s.config.WindowDuration):
		// Served block or lapsed window: start counting from scratch.
		window = &models.AttemptWindow{ClientID: clientID}
	}

	if window.WindowStart.IsZero() {
		window.WindowStart = now
	}
	window.AttemptCount++
	if window.AttemptCount >= s.config.MaxAttempts {
		// Clamp guards against a limit lowered across restarts.
		window.AttemptCount = s.config.MaxAttempts
		blockedUntil := now.Add(s.config.BlockDuration)
		// A new lockout never ends before one already on record.
		if blockedUntil.After(window.BlockedUntil) {
			window.BlockedUntil = blockedUntil
		}
		s.logger.Warn("client locked out after repeated sign-in failures",
			slog.String("client_id", clientID),
			slog.Int("attempt_count", window.AttemptCount),
			slog.Duration("block_duration", s.config.BlockDuration))
	}
	window.UpdatedAt = now
	window.ExpiresAt = window.WindowStart.Add(s.config.WindowDuration)
	if window.BlockedUntil.After(window.ExpiresAt) {
		window.ExpiresAt = window.BlockedUntil
	}

	status := s.statusAt(window, now)
	if err := s.repo.SaveWindow(ctx, window); err != nil {
		return status, fmt.Errorf("failed to save attempt window: %w", err)
	}

	return status, nil
}

// Reset clears the client's window after a successful sign-in. Resetting a
// client with no stored window is a no-op.
func (s *AttemptLimitService) Reset(ctx context.Context, clientID string) error {
	if err := s.repo.DeleteWindow(ctx, clientID); err != nil {
		return fmt.Errorf("failed to clear attempt window: %w", err)
	}
	return nil
}

// ClearStatus returns the state of a client with no recorded failures
func (s *AttemptLimitService) ClearStatus() models.LimiterStatus {
	return models.LimiterStatus{RemainingAttempts: s.config.MaxAttempts}
}

// statusAt derives the client-visible state from a stored window at a point
// in time. Ordering matters: an active block wins over window expiry.
func (s *AttemptLimitService) statusAt(window *models.AttemptWindow, now time.Time) models.LimiterStatus {
	if window.BlockedAt(now) {
		return models.LimiterStatus{
			Blocked:            true,
			BlockTimeRemaining: window.BlockedUntil.Sub(now),
		}
	}

	if !window.BlockedUntil.IsZero() || window.ExpiredAt(now, s.config.WindowDuration) {
		return s.ClearStatus()
	}

	remaining := s.config.MaxAttempts - window.AttemptCount
	if remaining < 0 {
		remaining = 0
	}
	return models.LimiterStatus{RemainingAttempts: remaining}
}
