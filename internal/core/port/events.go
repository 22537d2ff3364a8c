package port

import (
	"context"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

// EventPublisher fans security events out to downstream consumers (delivery,
// SIEM, notification). Publishing is best effort; callers log failures and
// never block the user-facing response on them.
type EventPublisher interface {
	PublishLoginAttempt(ctx context.Context, event domain.LoginAttemptEvent) error
	PublishPasswordChanged(ctx context.Context, event domain.PasswordChangedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
}
