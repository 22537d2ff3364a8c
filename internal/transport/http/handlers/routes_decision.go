package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
	"github.com/maratoff/institute-dashboard-iam/internal/transport/http/middleware"
	"github.com/maratoff/institute-dashboard-iam/internal/usecase"
)

// RoutesHandler answers navigation queries from the dashboard shell: given a
// target path and the caller's session, where should the browser actually go.
type RoutesHandler struct {
	policy   usecase.RoutePolicy
	sessions *usecase.SessionService
}

// NewRoutesHandler constructs RoutesHandler.
func NewRoutesHandler(policy usecase.RoutePolicy, sessions *usecase.SessionService) *RoutesHandler {
	return &RoutesHandler{policy: policy, sessions: sessions}
}

// RegisterRoutes binds the decision endpoint.
func (h *RoutesHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/decision", h.decide)
}

func (h *RoutesHandler) decide(c *gin.Context) {
	var req RouteDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "path is required"))
		return
	}

	routeReq := usecase.RouteRequest{Path: req.Path}

	// A missing, invalid, or revoked token downgrades the caller to
	// unauthenticated rather than failing the decision call.
	if token, ok := middleware.BearerToken(c); ok {
		if claims, err := h.sessions.Verify(c.Request.Context(), token); err == nil {
			routeReq.Authenticated = true
			routeReq.Role = domain.Role(claims.Role)
			routeReq.PasswordChanged = claims.PasswordChanged
		}
	}

	decision := usecase.Authorize(h.policy, routeReq)

	resp := RouteDecisionResponse{Decision: string(decision)}
	switch decision {
	case usecase.DecisionRedirectLogin:
		resp.RedirectTo = h.policy.LoginPath
	case usecase.DecisionRedirectChangePassword:
		resp.RedirectTo = h.policy.ChangePasswordPath
	case usecase.DecisionRedirectDashboard:
		resp.RedirectTo = h.policy.DashboardPath
	}

	c.JSON(http.StatusOK, resp)
}
