package domain

import (
	"time"
)

// Role enumerates the closed set of dashboard roles.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleStaff      Role = "staff"
	RoleResearcher Role = "researcher"
	RoleViewer     Role = "viewer"
)

// Valid reports whether the role belongs to the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleStaff, RoleResearcher, RoleViewer:
		return true
	}
	return false
}

// Account mirrors the persisted representation in the accounts table.
// TenantID is nil only for the superadmin role.
type Account struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	TenantID            *string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordChanged     bool
	LastLoginAt         *time.Time
	CreatedAt           time.Time
}

// LockedAt reports whether the account is under an active lockout at the given instant.
// Lockouts clear lazily: an expired lockout is simply not observed.
func (a Account) LockedAt(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// AttemptStatus is the audit outcome recorded for a single authenticate call.
type AttemptStatus string

const (
	AttemptSuccess AttemptStatus = "success"
	AttemptFailed  AttemptStatus = "failed"
	AttemptLocked  AttemptStatus = "locked"
)

// LoginAttempt is an append-only audit fact. The email is kept even when no
// account matched so abuse against unknown addresses remains visible.
type LoginAttempt struct {
	ID        string
	AccountID *string
	Email     string
	IPAddress *string
	UserAgent *string
	Status    AttemptStatus
	CreatedAt time.Time
}

// ResetToken is a single-use password recovery capability, stored as a hash.
type ResetToken struct {
	ID        string
	Email     string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token's validity window has passed.
func (t ResetToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
