package domain

import "time"

// LoginAttemptEvent fans out a single authenticate outcome to downstream consumers.
type LoginAttemptEvent struct {
	EventID    string
	AccountID  *string
	Email      string
	Status     AttemptStatus
	IPAddress  *string
	UserAgent  *string
	OccurredAt time.Time
	Metadata   map[string]any
}

// PasswordChangedEvent notifies downstream systems that a credential rotated.
type PasswordChangedEvent struct {
	EventID         string
	AccountID       string
	ChangedAt       time.Time
	Reason          string
	SessionsRevoked int
	Metadata        map[string]any
}

// PasswordResetRequestedEvent carries the artifact downstream delivery needs
// to send the reset email. The raw token never appears in logs, only here.
type PasswordResetRequestedEvent struct {
	EventID           string
	Email             string
	RequestID         string
	RequestedAt       time.Time
	ExpiresAt         time.Time
	MaskedDestination string
	IPAddress         *string
	Metadata          map[string]any
}
