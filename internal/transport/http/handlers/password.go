package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/middleware"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

// PasswordHandler exposes the reset lifecycle and the forced change endpoint.
type PasswordHandler struct {
	passwords *usecase.PasswordService
	sessions  *usecase.SessionService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(passwords *usecase.PasswordService, sessions *usecase.SessionService) *PasswordHandler {
	return &PasswordHandler{passwords: passwords, sessions: sessions}
}

// RegisterRoutes binds password routes. The reset endpoints are public; the
// change endpoint requires a session but deliberately not a completed
// password change, since it is the only way out of the pending state.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/reset-request", h.requestReset)
	r.POST("/reset", h.completeReset)
	r.POST("/force-change", middleware.RequireSession(h.sessions), h.change)
}

func (h *PasswordHandler) requestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	result, err := h.passwords.RequestReset(c.Request.Context(), usecase.ResetRequestInput{
		Email:     strings.TrimSpace(req.Email),
		IPAddress: strings.TrimSpace(c.ClientIP()),
	})
	if err != nil {
		if errors.Is(err, usecase.ErrResetRateLimited) {
			var limited *usecase.ResetRateLimitedError
			if errors.As(err, &limited) && limited.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
			}
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, "too many reset requests"))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process reset request"))
		return
	}

	// The response never discloses whether the address matched an account.
	c.JSON(http.StatusAccepted, PasswordResetResponse{
		Message:   "if the address is registered, a reset link has been sent",
		RequestID: result.RequestID,
		ExpiresAt: result.ExpiresAt,
	})
}

func (h *PasswordHandler) completeReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token, new_password and a matching confirm_password are required"))
		return
	}

	err := h.passwords.CompleteReset(c.Request.Context(), strings.TrimSpace(req.Token), req.NewPassword)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordTooShort, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrResetTokenExpired, Status: http.StatusGone, Message: "reset token expired"},
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusUnauthorized, Message: "invalid reset token"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

func (h *PasswordHandler) change(c *gin.Context) {
	claims, ok := middleware.SessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "new_password and a matching confirm_password are required"))
		return
	}

	if err := h.sessions.ForceChangePassword(c.Request.Context(), claims, req.NewPassword); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordTooShort, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	// The presenting session was revoked together with the change. The caller
	// must authenticate again to obtain a token with the updated claim.
	c.JSON(http.StatusOK, MessageResponse{Message: "password changed, please sign in again"})
}
