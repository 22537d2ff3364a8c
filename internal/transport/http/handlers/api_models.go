package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes a minimal view of an account returned by the API.
type AccountSummary struct {
	ID              string      `json:"id"`
	Email           string      `json:"email"`
	Role            domain.Role `json:"role"`
	TenantID        *string     `json:"tenant_id,omitempty"`
	PasswordChanged bool        `json:"password_changed"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	SessionToken string         `json:"session_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int            `json:"expires_in"`
	Account      AccountSummary `json:"account"`
}

// SessionRefreshRequest represents the payload to refresh a session token.
type SessionRefreshRequest struct {
	SessionToken string `json:"session_token" binding:"required"`
}

// SessionRefreshResponse contains the re-signed token issued by the refresh endpoint.
type SessionRefreshResponse struct {
	SessionToken    string `json:"session_token"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	PasswordChanged bool   `json:"password_changed"`
}

// PasswordResetRequest represents a password reset initiation payload.
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetResponse returns the same shape whether or not the address matched.
type PasswordResetResponse struct {
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PasswordResetConfirmRequest captures a password reset confirmation payload.
// The confirmation copy is validated at the binding layer; the service never
// sees mismatched input.
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// PasswordChangeRequest captures the forced password change payload.
type PasswordChangeRequest struct {
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// PasswordChangeResponse conveys the result of a password change.
type PasswordChangeResponse struct {
	Message   string    `json:"message"`
	ChangedAt time.Time `json:"changed_at"`
}

// RouteDecisionRequest asks the authorizer to judge a navigation target.
type RouteDecisionRequest struct {
	Path string `json:"path" binding:"required"`
}

// RouteDecisionResponse carries the authorizer verdict and, for redirect
// decisions, the path the caller should navigate to instead.
type RouteDecisionResponse struct {
	Decision   string `json:"decision"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// newAccountSummary converts a domain account to a summary suitable for API responses.
func newAccountSummary(account domain.Account) AccountSummary {
	return AccountSummary{
		ID:              account.ID,
		Email:           account.Email,
		Role:            account.Role,
		TenantID:        account.TenantID,
		PasswordChanged: account.PasswordChanged,
	}
}
