package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts      *AccountRepository
	LoginAttempts *LoginAttemptRepository
	ResetTokens   *ResetTokenRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool, lockout domain.LockoutPolicy) *Repositories {
	return &Repositories{
		Accounts:      NewAccountRepository(pool, lockout),
		LoginAttempts: NewLoginAttemptRepository(pool),
		ResetTokens:   NewResetTokenRepository(pool),
	}
}
