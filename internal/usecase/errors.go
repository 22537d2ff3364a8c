package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect. The
	// message deliberately does not distinguish the two cases.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates too many consecutive failed attempts.
	ErrAccountLocked = errors.New("account locked")
	// ErrStoreUnavailable indicates the credential store could not be reached.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrResetTokenInvalid indicates the reset token does not exist or was already consumed.
	ErrResetTokenInvalid = errors.New("reset token invalid")
	// ErrResetTokenExpired indicates the reset token is past its expiry.
	ErrResetTokenExpired = errors.New("reset token expired")
	// ErrResetRateLimited indicates too many reset requests inside the window.
	ErrResetRateLimited = errors.New("reset requests rate limited")
	// ErrInvalidSessionToken indicates the session token is malformed or its signature failed.
	ErrInvalidSessionToken = errors.New("invalid session token")
	// ErrExpiredSessionToken indicates the session token is past its expiry.
	ErrExpiredSessionToken = errors.New("session token expired")
	// ErrSessionRevoked indicates the token was signed out or superseded.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrSessionIdle indicates the session sat inactive past the idle window.
	ErrSessionIdle = errors.New("session idle timeout")
	// ErrPasswordTooShort indicates the new password misses the minimum length.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrAccountNotFound indicates the referenced account no longer exists.
	ErrAccountNotFound = errors.New("account not found")
)

// ResetRateLimitedError reports how long the caller must wait before the
// sliding window admits another reset request. It unwraps to
// ErrResetRateLimited so errors.Is checks keep working.
type ResetRateLimitedError struct {
	RetryAfter time.Duration
}

func (e *ResetRateLimitedError) Error() string {
	return fmt.Sprintf("reset requests rate limited, retry after %s", e.RetryAfter)
}

func (e *ResetRateLimitedError) Unwrap() error { return ErrResetRateLimited }
