package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/models"
	pkglogger "github.com/atkt1/rzgateway/pkg/logger"
)

// Authenticator verifies credentials against the identity backend. It
// returns models.ErrUnauthorized for rejected credentials; any other error
// means the backend could not be asked.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) error
}

// SignInResult carries what a successful sign-in produces
type SignInResult struct {
	Email        string
	SessionToken string
	ExpiresAt    time.Time
}

// SignInService runs the sign-in flow: limiter gate, credential
// verification, attempt bookkeeping, session issuance
type SignInService struct {
	limiter       *AttemptLimitService
	authenticator Authenticator
	tokenManager  *auth.TokenManager
	delay         *auth.UniformDelay
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewSignInService creates a new SignInService
func NewSignInService(
	limiter *AttemptLimitService,
	authenticator Authenticator,
	tokenManager *auth.TokenManager,
	delay *auth.UniformDelay,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *SignInService {
	return &SignInService{
		limiter:       limiter,
		authenticator: authenticator,
		tokenManager:  tokenManager,
		delay:         delay,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// SignIn gates the attempt behind the client's window, verifies the
// credentials, and issues a session on success. The returned LimiterStatus
// reflects the state after this attempt so the handler can render it without
// a second read.
//
// A blocked client is rejected before the credentials ever reach the
// identity backend. Failed verification records one attempt; backend
// trouble records nothing, an unreachable upstream says nothing about the
// password.
func (s *SignInService) SignIn(ctx context.Context, clientID, email, password, ipAddress, userAgent string) (*SignInResult, models.LimiterStatus, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	status := s.limiter.Status(ctx, clientID)
	if status.Blocked {
		s.auditLogger.LogSignInAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			ClientID:      clientID,
			Email:         email,
			IPAddress:     ipAddress,
			UserAgent:     userAgent,
			Success:       false,
			FailureReason: "attempt_limit",
		})
		return nil, status, models.ErrSignInBlocked
	}

	if err := s.authenticator.Authenticate(ctx, email, password); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			status = s.recordFailure(ctx, clientID, email, ipAddress, userAgent)
			s.delay.WaitFrom(start)
			return nil, status, models.ErrUnauthorized
		}

		s.logger.Error("identity backend error during sign-in",
			slog.String("client_id", clientID),
			slog.Any("error", err))
		s.delay.WaitFrom(start)
		return nil, status, models.ErrInternalServer
	}

	if err := s.limiter.Reset(ctx, clientID); err != nil {
		// A leftover count corrects itself on the next successful reset
		s.logger.Warn("failed to clear attempt window after sign-in",
			slog.String("client_id", clientID),
			slog.Any("error", err))
	}

	token, expiresAt, err := s.tokenManager.GenerateSessionToken(email)
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, s.limiter.ClearStatus(), models.ErrInternalServer
	}

	s.auditLogger.LogSignInAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		ClientID:  clientID,
		Email:     email,
		IPAddress: ipAddress,
		UserAgent: userAgent,
		Success:   true,
	})

	return &SignInResult{
		Email:        email,
		SessionToken: token,
		ExpiresAt:    expiresAt,
	}, s.limiter.ClearStatus(), nil
}

// recordFailure counts one failed attempt and writes the audit trail. Store
// errors are logged and swallowed; the attempt already failed either way.
func (s *SignInService) recordFailure(ctx context.Context, clientID, email, ipAddress, userAgent string) models.LimiterStatus {
	status, err := s.limiter.RecordAttempt(ctx, clientID)
	if err != nil {
		s.logger.Warn("failed to record sign-in attempt",
			slog.String("client_id", clientID),
			slog.Any("error", err))
	}

	s.auditLogger.LogSignInAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		ClientID:      clientID,
		Email:         email,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	if status.Blocked {
		s.auditLogger.LogLockout(clientID, ipAddress, status.BlockTimeRemaining)
	}

	return status
}

// Status exposes the limiter state for the login form's poll
func (s *SignInService) Status(ctx context.Context, clientID string) models.LimiterStatus {
	return s.limiter.Status(ctx, clientID)
}

// Logout writes the audit trail for a session ending. Clearing the cookie is
// the handler's job.
func (s *SignInService) Logout(email, clientID, ipAddress string) {
	s.auditLogger.LogSessionEvent("logout", email, clientID, ipAddress)
}
