package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/handlers"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

type noopFlagCache struct{}

func (noopFlagCache) GetPasswordChanged(context.Context, string) (bool, bool, error) {
	return true, true, nil
}
func (noopFlagCache) SetPasswordChanged(context.Context, string, bool, time.Duration) error {
	return nil
}
func (noopFlagCache) Invalidate(context.Context, string) error { return nil }

type noopRevocation struct{}

func (noopRevocation) Revoke(context.Context, string, string, time.Duration) error { return nil }
func (noopRevocation) IsRevoked(context.Context, string) (bool, error)             { return false, nil }

// throttledLimiter reports a saturated window whose oldest entry is a fixed
// distance in the past.
type throttledLimiter struct {
	age time.Duration
}

func (l *throttledLimiter) RecordAttempt(context.Context, string, time.Time) error { return nil }
func (l *throttledLimiter) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return 3, nil
}
func (l *throttledLimiter) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return nil
}
func (l *throttledLimiter) OldestAttempt(_ context.Context, _ string, _ time.Duration, reference time.Time) (time.Time, bool, error) {
	return reference.Add(-l.age), true, nil
}

func passwordEngine(h *handlers.PasswordHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/password"))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCompleteReset_ConfirmMismatchRejected(t *testing.T) {
	r := passwordEngine(handlers.NewPasswordHandler(nil, nil))

	body := `{"token":"tok","new_password":"brand new password","confirm_password":"a different password"}`
	w := postJSON(t, r, "/password/reset", body, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched confirmation, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCompleteReset_ConfirmMissingRejected(t *testing.T) {
	r := passwordEngine(handlers.NewPasswordHandler(nil, nil))

	body := `{"token":"tok","new_password":"brand new password"}`
	w := postJSON(t, r, "/password/reset", body, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing confirmation, got %d: %s", w.Code, w.Body.String())
	}
}

func TestForceChange_ConfirmMismatchRejected(t *testing.T) {
	codec, err := security.NewSessionTokenCodec("test-secret-please-rotate", "dashboard-iam", time.Hour)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	sessions := usecase.NewSessionService(usecase.SessionConfig{}, nil, noopFlagCache{}, noopRevocation{}, codec, nil, zaptest.NewLogger(t))

	token, _, err := codec.Issue(&domain.Account{ID: "acct-1", Email: "jane@example.edu", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	r := passwordEngine(handlers.NewPasswordHandler(nil, sessions))

	body := `{"new_password":"brand new password","confirm_password":"a different password"}`
	w := postJSON(t, r, "/password/force-change", body, map[string]string{"Authorization": "Bearer " + token})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched confirmation, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRequestReset_RateLimitedCarriesRetryAfter(t *testing.T) {
	passwords := usecase.NewPasswordService(usecase.PasswordResetConfig{
		TokenTTL:    time.Hour,
		TokenBytes:  32,
		RateWindow:  time.Minute,
		MaxRequests: 3,
	}, nil, nil, &throttledLimiter{age: 20 * time.Second}, nil, nil, zaptest.NewLogger(t))

	r := passwordEngine(handlers.NewPasswordHandler(passwords, nil))

	w := postJSON(t, r, "/password/reset-request", `{"email":"jane@example.edu"}`, nil)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Retry-After"); got != "40" {
		t.Fatalf("expected Retry-After of 40 seconds, got %q", got)
	}
}
