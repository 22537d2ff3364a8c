package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/repository"
)

// ResetTokenRepository stores single-use password reset tokens.
type ResetTokenRepository struct {
	db      pgPool
	builder squirrel.StatementBuilderType
}

// NewResetTokenRepository constructs a PostgreSQL-backed reset token store.
func NewResetTokenRepository(db pgPool) *ResetTokenRepository {
	return &ResetTokenRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new reset token row. Only the hash of the token is stored.
func (r *ResetTokenRepository) Create(ctx context.Context, token domain.ResetToken) error {
	stmt, args, err := r.builder.Insert("dashboard.password_reset_tokens").
		Columns("id", "email", "token_hash", "created_at", "expires_at").
		Values(token.ID, token.Email, token.TokenHash, token.CreatedAt, token.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert reset token sql: %w", err)
	}

	if _, err := r.db.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	return nil
}

// GetByHash retrieves a token row by its hashed value.
func (r *ResetTokenRepository) GetByHash(ctx context.Context, hash string) (*domain.ResetToken, error) {
	stmt, args, err := r.builder.
		Select("id", "email", "token_hash", "created_at", "expires_at").
		From("dashboard.password_reset_tokens").
		Where(squirrel.Eq{"token_hash": hash}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select reset token sql: %w", err)
	}

	var token domain.ResetToken
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(
		&token.ID,
		&token.Email,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan reset token: %w", err)
	}

	return &token, nil
}

// ConsumeWithPasswordUpdate deletes the token and applies the password update
// it authorizes in one transaction. The DELETE doubles as the consumption
// check: when a concurrent request already consumed the token the delete
// returns no row and the whole operation aborts with ErrNotFound.
func (r *ResetTokenRepository) ConsumeWithPasswordUpdate(ctx context.Context, tokenID, accountID, passwordHash string, changedAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consume tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleteStmt, deleteArgs, err := r.builder.
		Delete("dashboard.password_reset_tokens").
		Where(squirrel.Eq{"id": tokenID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete reset token sql: %w", err)
	}

	var deletedID string
	if err := tx.QueryRow(ctx, deleteStmt, deleteArgs...).Scan(&deletedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	updateStmt, updateArgs, err := r.builder.Update("dashboard.accounts").
		Set("password_hash", passwordHash).
		Set("password_changed", true).
		Set("password_changed_at", changedAt).
		Set("failed_login_attempts", 0).
		Set("locked_until", nil).
		Where(squirrel.Eq{"id": accountID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	tag, err := tx.Exec(ctx, updateStmt, updateArgs...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consume tx: %w", err)
	}

	return nil
}

// DeleteExpired removes token rows whose expiry is in the past.
func (r *ResetTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	stmt, args, err := r.builder.
		Delete("dashboard.password_reset_tokens").
		Where(squirrel.Lt{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired tokens sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

var _ port.ResetTokenRepository = (*ResetTokenRepository)(nil)
