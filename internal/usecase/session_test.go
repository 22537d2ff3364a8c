package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
)

func sessionServiceForTest(t *testing.T, accounts *fakeAccountRepo, cache *fakeFlagCache, revocation *fakeRevocationStore, codec *security.SessionTokenCodec, now time.Time) *SessionService {
	t.Helper()
	cfg := SessionConfig{IdleTimeout: 15 * time.Minute, FlagCacheTTL: 2 * time.Minute}
	svc := NewSessionService(cfg, accounts, cache, revocation, codec, &fakePublisher{}, zaptest.NewLogger(t))
	return svc.WithClock(func() time.Time { return now })
}

func issueForTest(t *testing.T, codec *security.SessionTokenCodec, changed bool) (string, *security.SessionClaims) {
	t.Helper()
	token, claims, err := codec.Issue(&domain.Account{
		ID:              "acct-1",
		Email:           "jane@example.edu",
		Role:            domain.RoleStaff,
		PasswordChanged: changed,
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token, claims
}

func TestRefresh_PatchesStaleFlag(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)

	token, _ := issueForTest(t, codec, false)

	// The account completed its password change after the token was minted.
	accounts := &fakeAccountRepo{
		getPasswordChanged: func(_ context.Context, id string) (bool, error) {
			if id != "acct-1" {
				t.Fatalf("unexpected account id %q", id)
			}
			return true, nil
		},
	}
	cache := newFakeFlagCache()

	later := base.Add(5 * time.Minute)
	codec.WithClock(func() time.Time { return later })
	svc := sessionServiceForTest(t, accounts, cache, newFakeRevocationStore(), codec, later)

	result, err := svc.Refresh(context.Background(), token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !result.Claims.PasswordChanged {
		t.Fatalf("refresh must patch the stale snapshot to the live value")
	}
	if result.Claims.LastActivity != later.Unix() {
		t.Fatalf("refresh must stamp fresh activity")
	}
	if value, found := cache.entries["acct-1"]; !found || !value {
		t.Fatalf("refresh must repopulate the flag cache")
	}

	// The re-signed token verifies and carries the patched claim.
	claims, err := codec.Verify(result.SessionToken)
	if err != nil {
		t.Fatalf("Verify reissued: %v", err)
	}
	if !claims.PasswordChanged {
		t.Fatalf("reissued token must carry the patched claim")
	}
}

func TestRefresh_CacheHitSkipsStore(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)
	token, _ := issueForTest(t, codec, true)

	cache := newFakeFlagCache()
	cache.entries["acct-1"] = true

	// accounts.getPasswordChanged deliberately nil: a cache hit must not read the store.
	svc := sessionServiceForTest(t, &fakeAccountRepo{}, cache, newFakeRevocationStore(), codec, base.Add(time.Minute))

	if _, err := svc.Refresh(context.Background(), token); err != nil {
		t.Fatalf("Refresh with cache hit: %v", err)
	}
}

func TestRefresh_RevokedTokenRejected(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)
	token, claims := issueForTest(t, codec, true)

	revocation := newFakeRevocationStore()
	revocation.revoked[claims.ID] = "signed_out"

	svc := sessionServiceForTest(t, &fakeAccountRepo{}, newFakeFlagCache(), revocation, codec, base.Add(time.Minute))

	if _, err := svc.Refresh(context.Background(), token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked, got %v", err)
	}
}

func TestRefresh_IdleTimeout(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)
	token, claims := issueForTest(t, codec, true)

	revocation := newFakeRevocationStore()
	idle := base.Add(20 * time.Minute)
	svc := sessionServiceForTest(t, &fakeAccountRepo{}, newFakeFlagCache(), revocation, codec, idle)

	if _, err := svc.Refresh(context.Background(), token); !errors.Is(err, ErrSessionIdle) {
		t.Fatalf("expected ErrSessionIdle, got %v", err)
	}
	if reason := revocation.revoked[claims.ID]; reason != "idle_timeout" {
		t.Fatalf("idle session must be revoked, got reason %q", reason)
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)
	token, _ := issueForTest(t, codec, true)

	after := base.Add(2 * time.Hour)
	codec.WithClock(func() time.Time { return after })
	svc := sessionServiceForTest(t, &fakeAccountRepo{}, newFakeFlagCache(), newFakeRevocationStore(), codec, after)

	if _, err := svc.Refresh(context.Background(), token); !errors.Is(err, ErrExpiredSessionToken) {
		t.Fatalf("expected ErrExpiredSessionToken, got %v", err)
	}
}

func TestForceChangePassword_RevokesPresentingToken(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)
	_, claims := issueForTest(t, codec, false)

	var updatedHash string
	accounts := &fakeAccountRepo{
		updatePassword: func(_ context.Context, accountID, passwordHash string, _ time.Time) error {
			if accountID != "acct-1" {
				t.Fatalf("unexpected account id %q", accountID)
			}
			updatedHash = passwordHash
			return nil
		},
	}
	cache := newFakeFlagCache()
	cache.entries["acct-1"] = false
	revocation := newFakeRevocationStore()

	svc := sessionServiceForTest(t, accounts, cache, revocation, codec, base)

	if err := svc.ForceChangePassword(context.Background(), claims, "fresh long password"); err != nil {
		t.Fatalf("ForceChangePassword: %v", err)
	}

	ok, err := security.VerifyPassword("fresh long password", updatedHash)
	if err != nil || !ok {
		t.Fatalf("stored hash must verify the new password")
	}
	if reason := revocation.revoked[claims.ID]; reason != "password_changed" {
		t.Fatalf("presenting token must be revoked, got reason %q", reason)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "acct-1" {
		t.Fatalf("flag cache must be invalidated")
	}
}

func TestForceChangePassword_ShortPassword(t *testing.T) {
	base := time.Now().UTC()
	codec := testCodec(t, base)
	_, claims := issueForTest(t, codec, false)

	svc := sessionServiceForTest(t, &fakeAccountRepo{}, newFakeFlagCache(), newFakeRevocationStore(), codec, base)

	if err := svc.ForceChangePassword(context.Background(), claims, "short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestSignOut_RevokesUntilExpiry(t *testing.T) {
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	codec := testCodec(t, base)
	token, claims := issueForTest(t, codec, true)

	revocation := newFakeRevocationStore()
	svc := sessionServiceForTest(t, &fakeAccountRepo{}, newFakeFlagCache(), revocation, codec, base.Add(time.Minute))

	if err := svc.SignOut(context.Background(), claims); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, ok := revocation.revoked[claims.ID]; !ok {
		t.Fatalf("jti must be revoked")
	}

	// The signed-out token no longer verifies.
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("expected ErrSessionRevoked after sign-out, got %v", err)
	}
}
