package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

type fakeAccountRepo struct {
	getByEmailForAuth  func(ctx context.Context, email string) (*domain.Account, error)
	getPasswordChanged func(ctx context.Context, id string) (bool, error)
	applyLoginOutcome  func(ctx context.Context, accountID string, success bool, now time.Time) (int, *time.Time, error)
	updatePassword     func(ctx context.Context, accountID, passwordHash string, changedAt time.Time) error
}

func (f *fakeAccountRepo) GetByEmailForAuth(ctx context.Context, email string) (*domain.Account, error) {
	if f.getByEmailForAuth == nil {
		return nil, errors.New("unexpected call: GetByEmailForAuth")
	}
	return f.getByEmailForAuth(ctx, email)
}

func (f *fakeAccountRepo) GetPasswordChanged(ctx context.Context, id string) (bool, error) {
	if f.getPasswordChanged == nil {
		return false, errors.New("unexpected call: GetPasswordChanged")
	}
	return f.getPasswordChanged(ctx, id)
}

func (f *fakeAccountRepo) ApplyLoginOutcome(ctx context.Context, accountID string, success bool, now time.Time) (int, *time.Time, error) {
	if f.applyLoginOutcome == nil {
		return 0, nil, errors.New("unexpected call: ApplyLoginOutcome")
	}
	return f.applyLoginOutcome(ctx, accountID, success, now)
}

func (f *fakeAccountRepo) UpdatePassword(ctx context.Context, accountID, passwordHash string, changedAt time.Time) error {
	if f.updatePassword == nil {
		return errors.New("unexpected call: UpdatePassword")
	}
	return f.updatePassword(ctx, accountID, passwordHash, changedAt)
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	appended []domain.LoginAttempt
	err      error
}

func (f *fakeAttemptRepo) Append(_ context.Context, attempt domain.LoginAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, attempt)
	return f.err
}

type fakeResetTokenRepo struct {
	create        func(ctx context.Context, token domain.ResetToken) error
	getByHash     func(ctx context.Context, hash string) (*domain.ResetToken, error)
	consume       func(ctx context.Context, tokenID, accountID, passwordHash string, changedAt time.Time) error
	deleteExpired func(ctx context.Context, now time.Time) (int, error)
}

func (f *fakeResetTokenRepo) Create(ctx context.Context, token domain.ResetToken) error {
	if f.create == nil {
		return errors.New("unexpected call: Create")
	}
	return f.create(ctx, token)
}

func (f *fakeResetTokenRepo) GetByHash(ctx context.Context, hash string) (*domain.ResetToken, error) {
	if f.getByHash == nil {
		return nil, errors.New("unexpected call: GetByHash")
	}
	return f.getByHash(ctx, hash)
}

func (f *fakeResetTokenRepo) ConsumeWithPasswordUpdate(ctx context.Context, tokenID, accountID, passwordHash string, changedAt time.Time) error {
	if f.consume == nil {
		return errors.New("unexpected call: ConsumeWithPasswordUpdate")
	}
	return f.consume(ctx, tokenID, accountID, passwordHash, changedAt)
}

func (f *fakeResetTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if f.deleteExpired == nil {
		return 0, errors.New("unexpected call: DeleteExpired")
	}
	return f.deleteExpired(ctx, now)
}

type fakeFlagCache struct {
	entries     map[string]bool
	invalidated []string
	getErr      error
}

func newFakeFlagCache() *fakeFlagCache {
	return &fakeFlagCache{entries: make(map[string]bool)}
}

func (f *fakeFlagCache) GetPasswordChanged(_ context.Context, accountID string) (bool, bool, error) {
	if f.getErr != nil {
		return false, false, f.getErr
	}
	value, found := f.entries[accountID]
	return value, found, nil
}

func (f *fakeFlagCache) SetPasswordChanged(_ context.Context, accountID string, changed bool, _ time.Duration) error {
	f.entries[accountID] = changed
	return nil
}

func (f *fakeFlagCache) Invalidate(_ context.Context, accountID string) error {
	delete(f.entries, accountID)
	f.invalidated = append(f.invalidated, accountID)
	return nil
}

type fakeRevocationStore struct {
	revoked map[string]string
	err     error
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{revoked: make(map[string]string)}
}

func (f *fakeRevocationStore) Revoke(_ context.Context, jti, reason string, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.revoked[jti] = reason
	return nil
}

func (f *fakeRevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeRateLimit struct {
	recorded []time.Time
	count    int
	countErr error
	oldest   time.Time
}

func (f *fakeRateLimit) RecordAttempt(_ context.Context, _ string, at time.Time) error {
	f.recorded = append(f.recorded, at)
	return nil
}

func (f *fakeRateLimit) CountAttempts(_ context.Context, _ string, _ time.Duration, _ time.Time) (int, error) {
	return f.count, f.countErr
}

func (f *fakeRateLimit) TrimWindow(_ context.Context, _ string, _ time.Duration, _ time.Time) error {
	return nil
}

func (f *fakeRateLimit) OldestAttempt(_ context.Context, _ string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	if !f.oldest.IsZero() {
		return f.oldest, true, nil
	}
	if len(f.recorded) == 0 {
		return time.Time{}, false, nil
	}
	return f.recorded[0], true, nil
}

type fakePublisher struct {
	loginAttempts   []domain.LoginAttemptEvent
	passwordChanges []domain.PasswordChangedEvent
	resetRequests   []domain.PasswordResetRequestedEvent
	err             error
}

func (f *fakePublisher) PublishLoginAttempt(_ context.Context, event domain.LoginAttemptEvent) error {
	f.loginAttempts = append(f.loginAttempts, event)
	return f.err
}

func (f *fakePublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	f.passwordChanges = append(f.passwordChanges, event)
	return f.err
}

func (f *fakePublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	f.resetRequests = append(f.resetRequests, event)
	return f.err
}
