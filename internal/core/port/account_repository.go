package port

import (
	"context"
	"time"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

// AccountRepository is the credential store adapter for account security fields.
type AccountRepository interface {
	// GetByEmailForAuth reads the security columns needed to evaluate a login.
	GetByEmailForAuth(ctx context.Context, email string) (*domain.Account, error)
	// GetPasswordChanged reads only the live password-changed flag.
	GetPasswordChanged(ctx context.Context, id string) (bool, error)
	// ApplyLoginOutcome advances the lockout counters for one attempt and
	// returns the resulting state. The increment happens store-side under a
	// row lock, so two concurrent failed attempts cannot both observe the same
	// pre-increment counter. On success the counters reset, the lock clears,
	// and last_login_at is stamped.
	ApplyLoginOutcome(ctx context.Context, accountID string, success bool, now time.Time) (int, *time.Time, error)
	// UpdatePassword rotates the hash, sets password_changed, and resets the
	// failed-attempt counters in the same statement.
	UpdatePassword(ctx context.Context, accountID, passwordHash string, changedAt time.Time) error
}

// LoginAttemptRepository appends immutable audit records. There is deliberately
// no update or delete operation.
type LoginAttemptRepository interface {
	Append(ctx context.Context, attempt domain.LoginAttempt) error
}

// ResetTokenRepository manages single-use password reset tokens.
type ResetTokenRepository interface {
	Create(ctx context.Context, token domain.ResetToken) error
	GetByHash(ctx context.Context, hash string) (*domain.ResetToken, error)
	// ConsumeWithPasswordUpdate deletes the token and applies the password
	// update it authorizes inside one transaction. When the token row is
	// already gone (a concurrent consumer won the delete) it returns
	// repository.ErrNotFound and the password is untouched.
	ConsumeWithPasswordUpdate(ctx context.Context, tokenID, accountID, passwordHash string, changedAt time.Time) error
	// DeleteExpired removes tokens past their expiry. Maintenance only; expired
	// tokens are otherwise left in place and rejected at consume time.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
