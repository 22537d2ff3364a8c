package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/repository"
)

func TestResetTokenRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	now := time.Now().UTC()
	token := domain.ResetToken{
		ID:        "tok-1",
		Email:     "jane@example.edu",
		TokenHash: "deadbeef",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec(`INSERT INTO dashboard\.password_reset_tokens`).
		WithArgs(token.ID, token.Email, token.TokenHash, token.CreatedAt, token.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), token); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_ConsumeWithPasswordUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	changedAt := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM dashboard\.password_reset_tokens .*RETURNING id`).
		WithArgs("tok-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("tok-1"))
	mock.ExpectExec(`UPDATE dashboard\.accounts`).
		WithArgs("argon2id$new", true, changedAt, 0, nil, "acct-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	if err := repo.ConsumeWithPasswordUpdate(context.Background(), "tok-1", "acct-1", "argon2id$new", changedAt); err != nil {
		t.Fatalf("ConsumeWithPasswordUpdate: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestResetTokenRepository_ConsumeAlreadyUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewResetTokenRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`DELETE FROM dashboard\.password_reset_tokens .*RETURNING id`).
		WithArgs("tok-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err = repo.ConsumeWithPasswordUpdate(context.Background(), "tok-1", "acct-1", "argon2id$new", time.Now().UTC())
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for consumed token, got %v", err)
	}
}
