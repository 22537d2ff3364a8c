package port

import (
	"context"
	"time"
)

// FlagCache caches the password-changed flag so session reconciliation does not
// hit the primary store on every refresh. Staleness is bounded by the entry TTL.
type FlagCache interface {
	// GetPasswordChanged returns (value, found). A miss is not an error.
	GetPasswordChanged(ctx context.Context, accountID string) (bool, bool, error)
	SetPasswordChanged(ctx context.Context, accountID string, changed bool, ttl time.Duration) error
	// Invalidate drops the cached entry, forcing the next read through to the store.
	Invalidate(ctx context.Context, accountID string) error
}

// SessionRevocationStore marks session token identifiers as terminated ahead of
// their natural expiry. Entries only need to live as long as the token would.
type SessionRevocationStore interface {
	Revoke(ctx context.Context, jti, reason string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RateLimitStore records attempts inside a sliding window.
type RateLimitStore interface {
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
