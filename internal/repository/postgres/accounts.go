package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/core/port"
	"github.com/maratoff/institute-dashboard-iam/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgPool is a pgExecutor that can also open transactions.
type pgPool interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

const accountColumns = "id, email, password_hash, role, tenant_id, failed_login_attempts, locked_until, password_changed, last_login_at, created_at"

// AccountRepository implements port.AccountRepository backed by PostgreSQL.
type AccountRepository struct {
	db      pgPool
	lockout domain.LockoutPolicy
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs a repository backed by any executor that satisfies pgPool.
func NewAccountRepository(db pgPool, lockout domain.LockoutPolicy) *AccountRepository {
	if lockout.Threshold < 1 || lockout.Duration <= 0 {
		lockout = domain.DefaultLockoutPolicy()
	}
	return &AccountRepository{
		db:      db,
		lockout: lockout,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *AccountRepository) scanAccount(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.TenantID,
		&account.FailedLoginAttempts,
		&account.LockedUntil,
		&account.PasswordChanged,
		&account.LastLoginAt,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}

// GetByEmailForAuth retrieves the account security row for a login attempt.
// Email matching is case-insensitive.
func (r *AccountRepository) GetByEmailForAuth(ctx context.Context, email string) (*domain.Account, error) {
	stmt, args, err := r.builder.
		Select(accountColumns).
		From("dashboard.accounts").
		Where(squirrel.Expr("lower(email) = lower(?)", email)).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select account sql: %w", err)
	}

	return r.scanAccount(r.db.QueryRow(ctx, stmt, args...))
}

// GetPasswordChanged reads the live password-changed flag for one account.
func (r *AccountRepository) GetPasswordChanged(ctx context.Context, id string) (bool, error) {
	stmt, args, err := r.builder.
		Select("password_changed").
		From("dashboard.accounts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select password_changed sql: %w", err)
	}

	var changed bool
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(&changed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, repository.ErrNotFound
		}
		return false, fmt.Errorf("scan password_changed: %w", err)
	}

	return changed, nil
}

// ApplyLoginOutcome advances the counters inside a transaction. The account
// row is locked first and the current counters are re-read under that lock, so
// concurrent attempts serialize on the increment instead of overwriting each
// other with values computed from stale snapshots.
func (r *AccountRepository) ApplyLoginOutcome(ctx context.Context, accountID string, success bool, now time.Time) (int, *time.Time, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("begin login outcome tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockStmt, lockArgs, err := r.builder.
		Select("failed_login_attempts", "locked_until").
		From("dashboard.accounts").
		Where(squirrel.Eq{"id": accountID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("build lock account sql: %w", err)
	}

	var current int
	var currentUntil *time.Time
	if err := tx.QueryRow(ctx, lockStmt, lockArgs...).Scan(&current, &currentUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, repository.ErrNotFound
		}
		return 0, nil, fmt.Errorf("lock account row: %w", err)
	}

	next, until := r.lockout.Next(current, currentUntil, now, success)

	update := r.builder.Update("dashboard.accounts").
		Set("failed_login_attempts", next).
		Set("locked_until", until).
		Where(squirrel.Eq{"id": accountID})
	if success {
		update = update.Set("last_login_at", squirrel.Expr("now()"))
	}

	stmt, args, err := update.ToSql()
	if err != nil {
		return 0, nil, fmt.Errorf("build update login outcome sql: %w", err)
	}

	if _, err := tx.Exec(ctx, stmt, args...); err != nil {
		return 0, nil, fmt.Errorf("update login outcome: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, fmt.Errorf("commit login outcome tx: %w", err)
	}

	return next, until, nil
}

// UpdatePassword rotates the credential and resets the failed-attempt state in
// one statement so a successful change always leaves a clean lockout slate.
func (r *AccountRepository) UpdatePassword(ctx context.Context, accountID, passwordHash string, changedAt time.Time) error {
	stmt, args, err := r.builder.Update("dashboard.accounts").
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

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.AccountRepository = (*AccountRepository)(nil)
