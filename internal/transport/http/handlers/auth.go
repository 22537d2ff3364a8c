package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maratoff/institute-dashboard-iam/internal/infra/security"
	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/middleware"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

// AuthHandler exposes login, refresh, and logout endpoints.
type AuthHandler struct {
	login    *usecase.LoginService
	sessions *usecase.SessionService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, sessions *usecase.SessionService) *AuthHandler {
	return &AuthHandler{login: login, sessions: sessions}
}

// RegisterRoutes binds authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.loginHandler)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", middleware.RequireSession(h.sessions), h.logout)
}

func (h *AuthHandler) loginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	input := usecase.LoginInput{
		Email:     strings.TrimSpace(req.Email),
		Password:  req.Password,
		IPAddress: strings.TrimSpace(c.ClientIP()),
		UserAgent: strings.TrimSpace(c.Request.UserAgent()),
	}

	result, err := h.login.Authenticate(c.Request.Context(), input)
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		SessionToken: result.SessionToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn(result.Claims),
		Account:      newAccountSummary(result.Account),
	})
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid credentials"))
	case errors.Is(err, usecase.ErrAccountLocked):
		c.JSON(http.StatusLocked, NewErrorResponse(c, "account temporarily locked"))
	case errors.Is(err, usecase.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "authentication temporarily unavailable"))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
	}
}

func (h *AuthHandler) refresh(c *gin.Context) {
	var req SessionRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_token is required"))
		return
	}

	result, err := h.sessions.Refresh(c.Request.Context(), req.SessionToken)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrExpiredSessionToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session expired"))
		case errors.Is(err, usecase.ErrSessionIdle):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session idle timeout"))
		case errors.Is(err, usecase.ErrSessionRevoked):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "session terminated"))
		case errors.Is(err, usecase.ErrInvalidSessionToken):
			c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "invalid session"))
		default:
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to refresh session"))
		}
		return
	}

	c.JSON(http.StatusOK, SessionRefreshResponse{
		SessionToken:    result.SessionToken,
		TokenType:       "Bearer",
		ExpiresIn:       expiresIn(result.Claims),
		PasswordChanged: result.Claims.PasswordChanged,
	})
}

func (h *AuthHandler) logout(c *gin.Context) {
	claims, ok := middleware.SessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.SignOut(c.Request.Context(), claims); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to terminate session"))
		return
	}

	c.Status(http.StatusNoContent)
}

func expiresIn(claims *security.SessionClaims) int {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return 0
	}

	return int(remaining.Seconds())
}
