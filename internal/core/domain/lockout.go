package domain

import "time"

const (
	// LockoutThreshold is the default number of consecutive failures that triggers a lock.
	LockoutThreshold = 5
	// LockoutDuration is the default length of a lock window.
	LockoutDuration = 15 * time.Minute
)

// LockoutPolicy parameterizes the failed-attempt lockout. The zero value is not
// usable; construct from configuration or DefaultLockoutPolicy.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy returns the standard 5-failures/15-minutes policy.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{Threshold: LockoutThreshold, Duration: LockoutDuration}
}

// Next computes the security counters after a login attempt. It is
// deterministic and performs no I/O so it can be property-tested on its own.
// The store applies it under a row lock so concurrent attempts serialize on
// the counter.
//
// A success always resets to (0, nil). A failure increments the counter and,
// exactly when the counter reaches the threshold, sets the lock expiry to
// now + Duration. The lock expiry is never extended by further failures while
// already at or above the threshold within the same window; callers
// short-circuit locked accounts before reaching this function.
func (p LockoutPolicy) Next(failCount int, lockedUntil *time.Time, now time.Time, success bool) (int, *time.Time) {
	if success {
		return 0, nil
	}

	next := failCount + 1
	if next >= p.Threshold {
		until := now.Add(p.Duration)
		return next, &until
	}

	return next, lockedUntil
}
