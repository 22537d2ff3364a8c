package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/logger"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
	"github.com/maratoff/institute-dashboard-iam/internal/repository"
)

// MinPasswordLength is the only password policy the service enforces.
const MinPasswordLength = 8

// PasswordResetConfig tunes token issuance and request throttling.
type PasswordResetConfig struct {
	TokenTTL    time.Duration
	TokenBytes  int
	RateWindow  time.Duration
	MaxRequests int
}

// ResetRequestInput carries one reset-request call.
type ResetRequestInput struct {
	Email     string
	IPAddress string
}

// ResetRequestResult reports issuance details for downstream delivery. The raw
// token leaves the service only through the event publisher, never through logs.
type ResetRequestResult struct {
	RequestID string
	ExpiresAt time.Time
}

// PasswordService owns the reset token lifecycle and reset completion.
type PasswordService struct {
	cfg       PasswordResetConfig
	accounts  port.AccountRepository
	tokens    port.ResetTokenRepository
	rateLimit port.RateLimitStore
	flagCache port.FlagCache
	publisher port.EventPublisher
	logger    *zap.Logger

	now func() time.Time
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(
	cfg PasswordResetConfig,
	accounts port.AccountRepository,
	tokens port.ResetTokenRepository,
	rateLimit port.RateLimitStore,
	flagCache port.FlagCache,
	publisher port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.TokenBytes <= 0 {
		cfg.TokenBytes = 32
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordService{
		cfg:       cfg,
		accounts:  accounts,
		tokens:    tokens,
		rateLimit: rateLimit,
		flagCache: flagCache,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *PasswordService) WithClock(now func() time.Time) *PasswordService {
	s.now = now
	return s
}

// RequestReset issues a single-use reset token for the address. The response is
// identical whether or not an account exists; only the rate limit error is
// distinguishable, and it keys on the address, not on account existence.
func (s *PasswordService) RequestReset(ctx context.Context, input ResetRequestInput) (*ResetRequestResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	now := s.now().UTC()

	if err := s.checkRateLimit(ctx, email, now); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	expiresAt := now.Add(s.cfg.TokenTTL)

	// Unknown addresses still get the anti-enumeration response; no token row
	// and no event are produced for them.
	if _, err := s.accounts.GetByEmailForAuth(ctx, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("reset requested for unknown address",
				zap.String("email", logger.MaskEmail(email)),
			)
			return &ResetRequestResult{RequestID: requestID, ExpiresAt: expiresAt}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	raw, err := security.GenerateSecureToken(s.cfg.TokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	token := domain.ResetToken{
		ID:        uuid.NewString(),
		Email:     email,
		TokenHash: security.HashToken(raw),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.publisher != nil {
		event := domain.PasswordResetRequestedEvent{
			Email:             email,
			RequestID:         requestID,
			RequestedAt:       now,
			ExpiresAt:         expiresAt,
			MaskedDestination: logger.MaskEmail(email),
			Metadata:          map[string]any{"token": raw},
		}
		if input.IPAddress != "" {
			ip := input.IPAddress
			event.IPAddress = &ip
		}
		if err := s.publisher.PublishPasswordResetRequested(ctx, event); err != nil {
			s.logger.Warn("publish reset requested failed", zap.Error(err))
		}
	}

	return &ResetRequestResult{RequestID: requestID, ExpiresAt: expiresAt}, nil
}

func (s *PasswordService) checkRateLimit(ctx context.Context, email string, now time.Time) error {
	if s.rateLimit == nil || s.cfg.MaxRequests <= 0 || s.cfg.RateWindow <= 0 {
		return nil
	}

	if err := s.rateLimit.TrimWindow(ctx, email, s.cfg.RateWindow, now); err != nil {
		s.logger.Warn("trim rate limit window failed", zap.Error(err))
	}

	count, err := s.rateLimit.CountAttempts(ctx, email, s.cfg.RateWindow, now)
	if err != nil {
		// Limiter unavailability must not block password recovery.
		s.logger.Warn("count reset requests failed", zap.Error(err))
		return nil
	}
	if count >= s.cfg.MaxRequests {
		retryAfter := s.cfg.RateWindow
		if oldest, found, err := s.rateLimit.OldestAttempt(ctx, email, s.cfg.RateWindow, now); err != nil {
			s.logger.Warn("read oldest reset request failed", zap.Error(err))
		} else if found {
			if wait := oldest.Add(s.cfg.RateWindow).Sub(now); wait > 0 {
				retryAfter = wait
			}
		}
		return &ResetRateLimitedError{RetryAfter: retryAfter}
	}

	if err := s.rateLimit.RecordAttempt(ctx, email, now); err != nil {
		s.logger.Warn("record reset request failed", zap.Error(err))
	}

	return nil
}

// CompleteReset consumes the token and rotates the password in one transaction.
// A concurrent consume of the same token leaves exactly one winner.
func (s *PasswordService) CompleteReset(ctx context.Context, rawToken, newPassword string) error {
	if rawToken == "" {
		return ErrResetTokenInvalid
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	now := s.now().UTC()

	token, err := s.tokens.GetByHash(ctx, security.HashToken(rawToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Expired tokens are rejected but left in place; cleanup is a separate
	// maintenance concern, not part of consume.
	if token.Expired(now) {
		return ErrResetTokenExpired
	}

	account, err := s.accounts.GetByEmailForAuth(ctx, token.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.tokens.ConsumeWithPasswordUpdate(ctx, token.ID, account.ID, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race against a concurrent consumer.
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	s.invalidateFlag(ctx, account.ID)
	s.publishPasswordChanged(ctx, account.ID, now, "reset")

	return nil
}

func (s *PasswordService) invalidateFlag(ctx context.Context, accountID string) {
	if s.flagCache == nil {
		return
	}
	if err := s.flagCache.Invalidate(context.WithoutCancel(ctx), accountID); err != nil {
		s.logger.Warn("invalidate flag cache failed",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
	}
}

func (s *PasswordService) publishPasswordChanged(ctx context.Context, accountID string, at time.Time, reason string) {
	if s.publisher == nil {
		return
	}
	event := domain.PasswordChangedEvent{
		AccountID: accountID,
		ChangedAt: at,
		Reason:    reason,
	}
	if err := s.publisher.PublishPasswordChanged(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("publish password changed failed", zap.Error(err))
	}
}
