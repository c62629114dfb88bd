package models

import "time"

// AttemptWindow tracks consecutive failed sign-in attempts for a single client.
// A zero WindowStart means no attempts are currently counted; a zero
// BlockedUntil means the client is not blocked.
type AttemptWindow struct {
	ClientID     string    `db:"client_id"`
	AttemptCount int       `db:"attempt_count"`
	WindowStart  time.Time `db:"window_start"`
	BlockedUntil time.Time `db:"blocked_until"`
	UpdatedAt    time.Time `db:"updated_at"`
	ExpiresAt    time.Time `db:"expires_at"` // when the stored row stops mattering and may be swept
}

// BlockedAt reports whether the window's lockout is still in effect at the
// given instant.
func (w *AttemptWindow) BlockedAt(now time.Time) bool {
	return !w.BlockedUntil.IsZero() && now.Before(w.BlockedUntil)
}

// ExpiredAt reports whether the counting window has lapsed at the given
// instant. A window with a zero start counts as expired.
func (w *AttemptWindow) ExpiredAt(now time.Time, windowDuration time.Duration) bool {
	return w.WindowStart.IsZero() || now.Sub(w.WindowStart) > windowDuration
}

// LimiterStatus is a point-in-time view of a client's attempt window,
// shaped for the login form: whether to disable the submit button, how many
// tries remain, and how long the countdown should run.
type LimiterStatus struct {
	Blocked            bool
	RemainingAttempts  int
	BlockTimeRemaining time.Duration
}
