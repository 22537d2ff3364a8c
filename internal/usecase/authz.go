package usecase

import (
	"strings"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

// RouteDecision is the outcome of one route-authorization check.
type RouteDecision string

const (
	DecisionAllow                  RouteDecision = "allow"
	DecisionRedirectLogin          RouteDecision = "redirect_login"
	DecisionRedirectChangePassword RouteDecision = "redirect_change_password"
	DecisionRedirectDashboard      RouteDecision = "redirect_dashboard"
	DecisionForbid                 RouteDecision = "forbid"
)

// RouteRequest is everything the authorizer looks at. It is a value type with
// no I/O: callers materialize it from session claims and the navigation target.
type RouteRequest struct {
	Authenticated   bool
	Path            string
	Role            domain.Role
	PasswordChanged bool
}

// RoutePolicy is configuration data for the authorizer.
type RoutePolicy struct {
	// LoginPath is redirected away from when already authenticated.
	LoginPath string
	// ChangePasswordPath stays reachable while a password change is pending.
	ChangePasswordPath string
	// DashboardPath is the default authenticated landing page.
	DashboardPath string
	// PublicPrefixes need no session at all.
	PublicPrefixes []string
	// RolePrefixes maps a route prefix to the set of roles allowed under it.
	// Prefixes absent from the map are open to every authenticated role.
	RolePrefixes map[string][]domain.Role
}

// DefaultRoutePolicy mirrors the dashboard's route layout.
func DefaultRoutePolicy() RoutePolicy {
	return RoutePolicy{
		LoginPath:          "/login",
		ChangePasswordPath: "/account/change-password",
		DashboardPath:      "/dashboard",
		PublicPrefixes:     []string{"/login", "/password/reset", "/healthz", "/readyz"},
		RolePrefixes: map[string][]domain.Role{
			"/admin":    {domain.RoleSuperadmin, domain.RoleAdmin},
			"/settings": {domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleStaff},
			"/research": {domain.RoleSuperadmin, domain.RoleAdmin, domain.RoleResearcher},
		},
	}
}

// Authorize is the pure route decision function. Precedence: public paths,
// authentication, the forced-change gate, the login-page bounce, then role
// allow-lists.
func Authorize(policy RoutePolicy, req RouteRequest) RouteDecision {
	path := normalizePath(req.Path)

	public := hasPrefixAny(path, policy.PublicPrefixes)

	if !req.Authenticated {
		if public {
			return DecisionAllow
		}
		return DecisionRedirectLogin
	}

	// A pending password change gates every protected path except the change
	// page itself.
	if !req.PasswordChanged && path != normalizePath(policy.ChangePasswordPath) {
		return DecisionRedirectChangePassword
	}

	// Authenticated users never see the login page.
	if path == normalizePath(policy.LoginPath) {
		return DecisionRedirectDashboard
	}

	for prefix, roles := range policy.RolePrefixes {
		if !strings.HasPrefix(path, normalizePath(prefix)) {
			continue
		}
		if !roleAllowed(req.Role, roles) {
			return DecisionForbid
		}
	}

	return DecisionAllow
}

func roleAllowed(role domain.Role, allowed []domain.Role) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}

func hasPrefixAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, normalizePath(prefix)) {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
