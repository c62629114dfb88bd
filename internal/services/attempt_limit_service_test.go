package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/atkt1/rzgateway/internal/models"
	"github.com/atkt1/rzgateway/internal/services"
	"github.com/stretchr/testify/assert"
)

// MockAttemptWindowRepository implements AttemptWindowRepository for testing
type MockAttemptWindowRepository struct {
	windows   map[string]*models.AttemptWindow
	getErr    error
	saveErr   error
	deleteErr error
}

func NewMockAttemptWindowRepository() *MockAttemptWindowRepository {
	return &MockAttemptWindowRepository{
		windows: make(map[string]*models.AttemptWindow),
	}
}

func (m *MockAttemptWindowRepository) GetWindow(ctx context.Context, clientID string) (*models.AttemptWindow, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	window, ok := m.windows[clientID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *window
	return &copied, nil
}

func (m *MockAttemptWindowRepository) SaveWindow(ctx context.Context, window *models.AttemptWindow) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *window
	m.windows[window.ClientID] = &copied
	return nil
}

func (m *MockAttemptWindowRepository) DeleteWindow(ctx context.Context, clientID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.windows, clientID)
	return nil
}

// fakeClock lets tests step through window and block expiry deterministically
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestLimiter(repo services.AttemptWindowRepository) (*services.AttemptLimitService, *fakeClock) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	config := services.AttemptLimitConfig{
		MaxAttempts:    5,
		WindowDuration: 15 * time.Minute,
		BlockDuration:  15 * time.Minute,
	}

	service := services.NewAttemptLimitService(repo, config, logger)
	clock := &fakeClock{current: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	service.SetClock(clock.Now)
	return service, clock
}

func TestAttemptLimitServiceStatus_UnknownClientIsClear(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, _ := newTestLimiter(repo)

	status := service.Status(context.Background(), "client-a")

	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.RemainingAttempts)
	assert.Equal(t, time.Duration(0), status.BlockTimeRemaining)
}

func TestAttemptLimitServiceRecordAttempt_CountsDownRemaining(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, _ := newTestLimiter(repo)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		status, err := service.RecordAttempt(ctx, "client-a")

		assert.NoError(t, err)
		assert.False(t, status.Blocked)
		assert.Equal(t, 5-i, status.RemainingAttempts)
	}

	status := service.Status(ctx, "client-a")
	assert.False(t, status.Blocked)
	assert.Equal(t, 1, status.RemainingAttempts)
}

func TestAttemptLimitServiceRecordAttempt_BlocksAtLimit(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, _ := newTestLimiter(repo)
	ctx := context.Background()

	var status models.LimiterStatus
	var err error
	for i := 0; i < 5; i++ {
		status, err = service.RecordAttempt(ctx, "client-a")
		assert.NoError(t, err)
	}

	assert.True(t, status.Blocked)
	assert.Equal(t, 0, status.RemainingAttempts)
	assert.Equal(t, 15*time.Minute, status.BlockTimeRemaining)

	status = service.Status(ctx, "client-a")
	assert.True(t, status.Blocked)
	assert.Equal(t, 0, status.RemainingAttempts)
	assert.Equal(t, 15*time.Minute, status.BlockTimeRemaining)
}

func TestAttemptLimitServiceStatus_BlockCountsDown(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, clock := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.RecordAttempt(ctx, "client-a")
	}

	clock.Advance(5 * time.Minute)
	status := service.Status(ctx, "client-a")
	assert.True(t, status.Blocked)
	assert.Equal(t, 10*time.Minute, status.BlockTimeRemaining)

	clock.Advance(9 * time.Minute)
	status = service.Status(ctx, "client-a")
	assert.True(t, status.Blocked)
	assert.Equal(t, 1*time.Minute, status.BlockTimeRemaining)
}

func TestAttemptLimitServiceStatus_BlockClearsAfterDuration(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, clock := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.RecordAttempt(ctx, "client-a")
	}

	clock.Advance(15 * time.Minute)
	status := service.Status(ctx, "client-a")

	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.RemainingAttempts)
	assert.Equal(t, time.Duration(0), status.BlockTimeRemaining)
}

func TestAttemptLimitServiceStatus_WindowExpiresQuietly(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, clock := newTestLimiter(repo)
	ctx := context.Background()

	_, _ = service.RecordAttempt(ctx, "client-a")
	_, _ = service.RecordAttempt(ctx, "client-a")

	clock.Advance(16 * time.Minute)

	status := service.Status(ctx, "client-a")
	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.RemainingAttempts)

	// The next failure opens a fresh window instead of continuing the old count.
	status, err := service.RecordAttempt(ctx, "client-a")
	assert.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Equal(t, 4, status.RemainingAttempts)
}

func TestAttemptLimitServiceRecordAttempt_FrozenWhileBlocked(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, clock := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.RecordAttempt(ctx, "client-a")
	}

	// A failure one minute into the block must not push the deadline out.
	clock.Advance(1 * time.Minute)
	status, err := service.RecordAttempt(ctx, "client-a")

	assert.NoError(t, err)
	assert.True(t, status.Blocked)
	assert.Equal(t, 14*time.Minute, status.BlockTimeRemaining)
}

func TestAttemptLimitServiceRecordAttempt_NewWindowAfterBlockServed(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, clock := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.RecordAttempt(ctx, "client-a")
	}

	clock.Advance(20 * time.Minute)

	status, err := service.RecordAttempt(ctx, "client-a")
	assert.NoError(t, err)
	assert.False(t, status.Blocked)
	assert.Equal(t, 4, status.RemainingAttempts)
}

func TestAttemptLimitServiceReset_ClearsState(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, _ := newTestLimiter(repo)
	ctx := context.Background()

	_, _ = service.RecordAttempt(ctx, "client-a")
	_, _ = service.RecordAttempt(ctx, "client-a")

	err := service.Reset(ctx, "client-a")
	assert.NoError(t, err)

	status := service.Status(ctx, "client-a")
	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.RemainingAttempts)
	assert.Equal(t, time.Duration(0), status.BlockTimeRemaining)

	// Resetting an already clear client is fine.
	assert.NoError(t, service.Reset(ctx, "client-a"))
}

func TestAttemptLimitServiceReset_ClearsActiveBlock(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, _ := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.RecordAttempt(ctx, "client-a")
	}

	err := service.Reset(ctx, "client-a")
	assert.NoError(t, err)

	status := service.Status(ctx, "client-a")
	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.RemainingAttempts)
}

func TestAttemptLimitServiceStatus_FailsOpenOnStoreError(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	repo.getErr = errors.New("connection refused")
	service, _ := newTestLimiter(repo)

	status := service.Status(context.Background(), "client-a")

	assert.False(t, status.Blocked)
	assert.Equal(t, 5, status.RemainingAttempts)
}

func TestAttemptLimitServiceRecordAttempt_SurfacesSaveError(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	repo.saveErr = errors.New("connection refused")
	service, _ := newTestLimiter(repo)

	status, err := service.RecordAttempt(context.Background(), "client-a")

	assert.Error(t, err)
	assert.False(t, status.Blocked)
	assert.Equal(t, 4, status.RemainingAttempts)
}

func TestAttemptLimitServiceRecordAttempt_LeavesStateOnLoadError(t *testing.T) {
	repo := NewMockAttemptWindowRepository()
	service, _ := newTestLimiter(repo)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = service.RecordAttempt(ctx, "client-a")
	}

	// A read failure during an active block must not clobber the block.
	repo.getErr = errors.New("connection refused")
	_, err := service.RecordAttempt(ctx, "client-a")
	assert.Error(t, err)

	repo.getErr = nil
	status := service.Status(ctx, "client-a")
	assert.True(t, status.Blocked)
}
