package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/logger"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
	"github.com/maratoff/institute-dashboard-iam/internal/repository"
)

// LoginInput carries everything one authenticate call needs.
type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Account      domain.Account
	SessionToken string
	Claims       *security.SessionClaims
}

// LoginService coordinates the authenticate use case: lookup, lockout check,
// password verification, counter update, audit append, session mint.
type LoginService struct {
	accounts  port.AccountRepository
	attempts  port.LoginAttemptRepository
	codec     *security.SessionTokenCodec
	publisher port.EventPublisher
	metrics   *LoginMetrics
	logger    *zap.Logger

	now func() time.Time
}

// NewLoginService constructs a LoginService.
func NewLoginService(
	accounts port.AccountRepository,
	attempts port.LoginAttemptRepository,
	codec *security.SessionTokenCodec,
	publisher port.EventPublisher,
	metrics *LoginMetrics,
	log *zap.Logger,
) *LoginService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoginService{
		accounts:  accounts,
		attempts:  attempts,
		codec:     codec,
		publisher: publisher,
		metrics:   metrics,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *LoginService) WithClock(now func() time.Time) *LoginService {
	s.now = now
	return s
}

// Authenticate validates credentials and mints a session token. Exactly one
// login attempt is appended to the audit log per call, whatever the outcome.
func (s *LoginService) Authenticate(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.TrimSpace(input.Email)
	now := s.now().UTC()

	// Even degenerate input produces its audit row. Every authenticate call
	// appends exactly one attempt, no exceptions.
	if email == "" || input.Password == "" {
		s.recordAttempt(ctx, nil, email, input, domain.AttemptFailed, now)
		s.metrics.observe("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmailForAuth(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.recordAttempt(ctx, nil, email, input, domain.AttemptFailed, now)
			s.metrics.observe("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		// Store unreachable. The attempt is still logged, with a null account.
		s.recordAttempt(ctx, nil, email, input, domain.AttemptFailed, now)
		s.metrics.observe("store_error")
		s.logger.Error("account lookup failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Active lock short-circuits before any password comparison. The lock
	// clears lazily; nothing resets it except the next outcome write.
	if account.LockedAt(now) {
		s.recordAttempt(ctx, &account.ID, email, input, domain.AttemptLocked, now)
		s.metrics.observe("locked")
		return nil, ErrAccountLocked
	}

	match, err := security.VerifyPassword(input.Password, account.PasswordHash)
	if err != nil {
		s.recordAttempt(ctx, &account.ID, email, input, domain.AttemptFailed, now)
		s.metrics.observe("store_error")
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !match {
		return s.handleFailure(ctx, account, email, input, now)
	}

	return s.handleSuccess(ctx, account, email, input, now)
}

func (s *LoginService) handleSuccess(ctx context.Context, account *domain.Account, email string, input LoginInput, now time.Time) (*LoginResult, error) {
	// Counter update first, audit append second. The append runs even when
	// the update fails so the trail survives counter write errors.
	failCount, lockedUntil, err := s.accounts.ApplyLoginOutcome(ctx, account.ID, true, now)
	if err != nil {
		s.recordAttempt(ctx, &account.ID, email, input, domain.AttemptFailed, now)
		s.metrics.observe("store_error")
		s.logger.Error("apply login outcome failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.recordAttempt(ctx, &account.ID, email, input, domain.AttemptSuccess, now)
	s.metrics.observe("success")

	account.FailedLoginAttempts = failCount
	account.LockedUntil = lockedUntil
	lastLogin := now
	account.LastLoginAt = &lastLogin

	token, claims, err := s.codec.Issue(account)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}

	sanitized := *account
	sanitized.PasswordHash = ""

	return &LoginResult{
		Account:      sanitized,
		SessionToken: token,
		Claims:       claims,
	}, nil
}

func (s *LoginService) handleFailure(ctx context.Context, account *domain.Account, email string, input LoginInput, now time.Time) (*LoginResult, error) {
	// The store owns the increment; the state that comes back already reflects
	// any concurrent attempts that won the row lock first.
	_, lockedUntil, err := s.accounts.ApplyLoginOutcome(ctx, account.ID, false, now)

	// The attempt that crosses the threshold is audited as locked, not failed.
	status := domain.AttemptFailed
	if err != nil {
		// Counter accuracy is sacrificed before the audit trail is.
		s.logger.Error("apply login outcome failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	} else if lockedUntil != nil && lockedUntil.After(now) {
		status = domain.AttemptLocked
	}

	s.recordAttempt(ctx, &account.ID, email, input, status, now)

	if status == domain.AttemptLocked {
		s.metrics.observe("locked")
		return nil, ErrAccountLocked
	}

	s.metrics.observe("invalid_credentials")
	return nil, ErrInvalidCredentials
}

// recordAttempt appends the audit record and publishes the fanout event. The
// detached context keeps both writes alive when the client disconnects
// mid-request; audit failures are logged but never surface to the caller.
func (s *LoginService) recordAttempt(ctx context.Context, accountID *string, email string, input LoginInput, status domain.AttemptStatus, now time.Time) {
	detached := context.WithoutCancel(ctx)

	attempt := domain.LoginAttempt{
		AccountID: accountID,
		Email:     email,
		Status:    status,
		CreatedAt: now,
	}
	if input.IPAddress != "" {
		ip := input.IPAddress
		attempt.IPAddress = &ip
	}
	if input.UserAgent != "" {
		ua := input.UserAgent
		attempt.UserAgent = &ua
	}

	if err := s.attempts.Append(detached, attempt); err != nil {
		s.logger.Error("append login attempt failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}

	if s.publisher == nil {
		return
	}

	event := domain.LoginAttemptEvent{
		AccountID:  accountID,
		Email:      email,
		Status:     status,
		IPAddress:  attempt.IPAddress,
		UserAgent:  attempt.UserAgent,
		OccurredAt: now,
	}
	if err := s.publisher.PublishLoginAttempt(detached, event); err != nil {
		s.logger.Warn("publish login attempt failed", zap.Error(err))
	}
}
