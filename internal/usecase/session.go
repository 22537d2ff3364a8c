package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
	"github.com/maratoff/institute-dashboard-iam/internal/repository"
)

// SessionConfig tunes refresh and idle behavior.
type SessionConfig struct {
	// IdleTimeout rejects refreshes whose last_activity is older than this.
	IdleTimeout time.Duration
	// FlagCacheTTL bounds the staleness of the cached password-changed flag.
	FlagCacheTTL time.Duration
}

// RefreshResult carries the re-signed token after a reconciliation cycle.
type RefreshResult struct {
	SessionToken string
	Claims       *security.SessionClaims
}

// SessionService mints, refreshes, and terminates stateless session tokens.
// Refresh doubles as the reconciliation cycle that patches a stale
// password-changed snapshot against the live store value.
type SessionService struct {
	cfg        SessionConfig
	accounts   port.AccountRepository
	flagCache  port.FlagCache
	revocation port.SessionRevocationStore
	codec      *security.SessionTokenCodec
	publisher  port.EventPublisher
	logger     *zap.Logger

	now func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(
	cfg SessionConfig,
	accounts port.AccountRepository,
	flagCache port.FlagCache,
	revocation port.SessionRevocationStore,
	codec *security.SessionTokenCodec,
	publisher port.EventPublisher,
	log *zap.Logger,
) *SessionService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 15 * time.Minute
	}
	if cfg.FlagCacheTTL <= 0 {
		cfg.FlagCacheTTL = 2 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		cfg:        cfg,
		accounts:   accounts,
		flagCache:  flagCache,
		revocation: revocation,
		codec:      codec,
		publisher:  publisher,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Verify parses the raw token and checks it against the revocation store.
// It performs no reconciliation; middleware uses it on every request.
func (s *SessionService) Verify(ctx context.Context, rawToken string) (*security.SessionClaims, error) {
	claims, err := s.codec.Verify(rawToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredSessionToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	revoked, err := s.revocation.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrSessionRevoked
	}

	return claims, nil
}

// Refresh runs one reconciliation cycle: verify, enforce the idle window,
// re-read the live password-changed flag, and re-sign with the patched
// snapshot and a fresh activity stamp.
func (s *SessionService) Refresh(ctx context.Context, rawToken string) (*RefreshResult, error) {
	claims, err := s.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	idle := now.Sub(time.Unix(claims.LastActivity, 0))
	if idle > s.cfg.IdleTimeout {
		s.revokeQuietly(ctx, claims, "idle_timeout")
		return nil, ErrSessionIdle
	}

	changed, err := s.livePasswordChanged(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: account gone", ErrInvalidSessionToken)
		}
		return nil, fmt.Errorf("read password flag: %w", err)
	}

	token, next, err := s.codec.Reissue(claims, changed)
	if err != nil {
		return nil, fmt.Errorf("reissue session token: %w", err)
	}

	return &RefreshResult{SessionToken: token, Claims: next}, nil
}

// livePasswordChanged reads the flag through the cache. A cache miss falls back
// to the store and repopulates the entry; cache errors degrade to store reads.
func (s *SessionService) livePasswordChanged(ctx context.Context, accountID string) (bool, error) {
	if s.flagCache != nil {
		changed, found, err := s.flagCache.GetPasswordChanged(ctx, accountID)
		if err != nil {
			s.logger.Warn("flag cache read failed", zap.Error(err))
		} else if found {
			return changed, nil
		}
	}

	changed, err := s.accounts.GetPasswordChanged(ctx, accountID)
	if err != nil {
		return false, err
	}

	if s.flagCache != nil {
		if err := s.flagCache.SetPasswordChanged(ctx, accountID, changed, s.cfg.FlagCacheTTL); err != nil {
			s.logger.Warn("flag cache write failed", zap.Error(err))
		}
	}

	return changed, nil
}

// ForceChangePassword rotates the credential for the authenticated session,
// then revokes the presenting token so the caller must sign in again.
// Refresh-time reconciliation covers other outstanding tokens.
func (s *SessionService) ForceChangePassword(ctx context.Context, claims *security.SessionClaims, newPassword string) error {
	if claims == nil || claims.Subject == "" {
		return ErrInvalidSessionToken
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	now := s.now().UTC()

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, claims.Subject, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.flagCache != nil {
		if err := s.flagCache.Invalidate(context.WithoutCancel(ctx), claims.Subject); err != nil {
			s.logger.Warn("invalidate flag cache failed", zap.Error(err))
		}
	}

	s.revokeQuietly(ctx, claims, "password_changed")

	if s.publisher != nil {
		event := domain.PasswordChangedEvent{
			AccountID:       claims.Subject,
			ChangedAt:       now,
			Reason:          "forced_change",
			SessionsRevoked: 1,
		}
		if err := s.publisher.PublishPasswordChanged(context.WithoutCancel(ctx), event); err != nil {
			s.logger.Warn("publish password changed failed", zap.Error(err))
		}
	}

	return nil
}

// SignOut marks the token's jti revoked until the token would expire anyway.
func (s *SessionService) SignOut(ctx context.Context, claims *security.SessionClaims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidSessionToken
	}

	ttl := s.remainingTTL(claims)
	if err := s.revocation.Revoke(ctx, claims.ID, "signed_out", ttl); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *SessionService) revokeQuietly(ctx context.Context, claims *security.SessionClaims, reason string) {
	if s.revocation == nil || claims.ID == "" {
		return
	}
	if err := s.revocation.Revoke(context.WithoutCancel(ctx), claims.ID, reason, s.remainingTTL(claims)); err != nil {
		s.logger.Warn("revoke session failed",
			zap.String("jti", claims.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// remainingTTL keeps revocation entries alive only as long as the token itself.
func (s *SessionService) remainingTTL(claims *security.SessionClaims) time.Duration {
	ttl := s.codec.TokenTTL()
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Time.Sub(s.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return ttl
}
