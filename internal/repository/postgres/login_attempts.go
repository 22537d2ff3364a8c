package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
)

// LoginAttemptRepository appends rows to the immutable login audit table.
type LoginAttemptRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

// NewLoginAttemptRepository constructs a PostgreSQL-backed audit log.
func NewLoginAttemptRepository(db pgPool) *LoginAttemptRepository {
	return &LoginAttemptRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts one audit record. Records are never updated or deleted.
func (r *LoginAttemptRepository) Append(ctx context.Context, attempt domain.LoginAttempt) error {
	id := attempt.ID
	if id == "" {
		id = uuid.NewString()
	}

	stmt, args, err := r.builder.Insert("dashboard.login_log").
		Columns(
			"id",
			"account_id",
			"email",
			"ip_address",
			"user_agent",
			"status",
			"created_at",
		).
		Values(
			id,
			attempt.AccountID,
			attempt.Email,
			attempt.IPAddress,
			attempt.UserAgent,
			string(attempt.Status),
			attempt.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert login attempt sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert login attempt: %w", err)
	}

	return nil
}

var _ port.LoginAttemptRepository = (*LoginAttemptRepository)(nil)
