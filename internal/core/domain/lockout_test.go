package domain

import (
	"testing"
	"time"
)

func TestLockoutPolicy_FailuresBelowThreshold(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := DefaultLockoutPolicy()

	count := 0
	var until *time.Time
	for i := 1; i < policy.Threshold; i++ {
		count, until = policy.Next(count, until, now, false)
		if count != i {
			t.Fatalf("after %d failures expected count %d, got %d", i, i, count)
		}
		if until != nil {
			t.Fatalf("expected no lock below threshold, got %v", until)
		}
	}
}

func TestLockoutPolicy_ThresholdSetsLock(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := DefaultLockoutPolicy()

	count, until := policy.Next(policy.Threshold-1, nil, now, false)
	if count != policy.Threshold {
		t.Fatalf("expected count %d, got %d", policy.Threshold, count)
	}
	if until == nil {
		t.Fatalf("expected lock to be set at threshold")
	}
	if want := now.Add(policy.Duration); !until.Equal(want) {
		t.Fatalf("expected lock until %v, got %v", want, until)
	}
}

func TestLockoutPolicy_ConfiguredThreshold(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	policy := LockoutPolicy{Threshold: 3, Duration: time.Minute}

	count, until := policy.Next(1, nil, now, false)
	if count != 2 || until != nil {
		t.Fatalf("second failure under threshold 3 must not lock, got count=%d until=%v", count, until)
	}

	count, until = policy.Next(2, nil, now, false)
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if until == nil || !until.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected a one-minute lock window, got %v", until)
	}
}

func TestLockoutPolicy_SuccessResets(t *testing.T) {
	now := time.Now().UTC()
	locked := now.Add(-time.Minute)

	count, until := DefaultLockoutPolicy().Next(7, &locked, now, true)
	if count != 0 {
		t.Fatalf("expected count reset to 0, got %d", count)
	}
	if until != nil {
		t.Fatalf("expected lock cleared on success, got %v", until)
	}
}

func TestLockoutPolicy_FailureAfterExpiredLockRelocks(t *testing.T) {
	now := time.Now().UTC()
	expired := now.Add(-time.Hour)
	policy := DefaultLockoutPolicy()

	count, until := policy.Next(policy.Threshold, &expired, now, false)
	if count != policy.Threshold+1 {
		t.Fatalf("expected count %d, got %d", policy.Threshold+1, count)
	}
	if until == nil || !until.Equal(now.Add(policy.Duration)) {
		t.Fatalf("expected a fresh lock window, got %v", until)
	}
}

func TestAccount_LockedAt(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(5 * time.Minute)
	past := now.Add(-5 * time.Minute)

	if (Account{}).LockedAt(now) {
		t.Fatalf("account without lock must not be locked")
	}
	if !(Account{LockedUntil: &future}).LockedAt(now) {
		t.Fatalf("account with future lock must be locked")
	}
	if (Account{LockedUntil: &past}).LockedAt(now) {
		t.Fatalf("expired lock must clear lazily")
	}
}
