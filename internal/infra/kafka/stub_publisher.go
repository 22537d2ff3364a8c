package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: log}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginAttempt logs dashboard.auth.login_attempt events.
func (p *StubPublisher) PublishLoginAttempt(_ context.Context, event domain.LoginAttemptEvent) error {
	accountID := ""
	if event.AccountID != nil {
		accountID = *event.AccountID
	}
	payload := map[string]any{
		"email":       logger.MaskEmail(event.Email),
		"status":      string(event.Status),
		"occurred_at": event.OccurredAt,
		"metadata":    event.Metadata,
	}
	p.logEvent("dashboard.auth.login_attempt", accountID, event.OccurredAt, payload)
	return nil
}

// PublishPasswordChanged logs dashboard.auth.password_changed events.
func (p *StubPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	payload := map[string]any{
		"changed_at":       event.ChangedAt,
		"reason":           event.Reason,
		"sessions_revoked": event.SessionsRevoked,
		"metadata":         event.Metadata,
	}
	p.logEvent("dashboard.auth.password_changed", event.AccountID, event.ChangedAt, payload)
	return nil
}

// PublishPasswordResetRequested logs dashboard.auth.password_reset_requested events.
func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := map[string]any{
		"email":              logger.MaskEmail(event.Email),
		"request_id":         event.RequestID,
		"requested_at":       event.RequestedAt,
		"expires_at":         event.ExpiresAt,
		"masked_destination": event.MaskedDestination,
		"metadata":           event.Metadata,
	}
	p.logEvent("dashboard.auth.password_reset_requested", "", event.RequestedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
