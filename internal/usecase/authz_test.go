package usecase

import (
	"testing"

	"github.com/maratoff/institute-dashboard-iam/internal/core/domain"
)

func TestAuthorize(t *testing.T) {
	policy := DefaultRoutePolicy()

	cases := []struct {
		name string
		req  RouteRequest
		want RouteDecision
	}{
		{
			name: "unauthenticated protected path",
			req:  RouteRequest{Authenticated: false, Path: "/dashboard"},
			want: DecisionRedirectLogin,
		},
		{
			name: "unauthenticated public path",
			req:  RouteRequest{Authenticated: false, Path: "/login"},
			want: DecisionAllow,
		},
		{
			name: "unauthenticated reset path",
			req:  RouteRequest{Authenticated: false, Path: "/password/reset"},
			want: DecisionAllow,
		},
		{
			name: "pending change gates everything",
			req:  RouteRequest{Authenticated: true, Path: "/dashboard", Role: domain.RoleStaff, PasswordChanged: false},
			want: DecisionRedirectChangePassword,
		},
		{
			name: "pending change allows the change page",
			req:  RouteRequest{Authenticated: true, Path: "/account/change-password", Role: domain.RoleStaff, PasswordChanged: false},
			want: DecisionAllow,
		},
		{
			name: "authenticated user on login page",
			req:  RouteRequest{Authenticated: true, Path: "/login", Role: domain.RoleViewer, PasswordChanged: true},
			want: DecisionRedirectDashboard,
		},
		{
			name: "viewer blocked from admin prefix",
			req:  RouteRequest{Authenticated: true, Path: "/admin/tenants", Role: domain.RoleViewer, PasswordChanged: true},
			want: DecisionForbid,
		},
		{
			name: "admin allowed on admin prefix",
			req:  RouteRequest{Authenticated: true, Path: "/admin/tenants", Role: domain.RoleAdmin, PasswordChanged: true},
			want: DecisionAllow,
		},
		{
			name: "researcher allowed on research prefix",
			req:  RouteRequest{Authenticated: true, Path: "/research/datasets", Role: domain.RoleResearcher, PasswordChanged: true},
			want: DecisionAllow,
		},
		{
			name: "staff blocked from research prefix",
			req:  RouteRequest{Authenticated: true, Path: "/research/datasets", Role: domain.RoleStaff, PasswordChanged: true},
			want: DecisionForbid,
		},
		{
			name: "unmapped prefix open to any role",
			req:  RouteRequest{Authenticated: true, Path: "/reports/weekly", Role: domain.RoleViewer, PasswordChanged: true},
			want: DecisionAllow,
		},
		{
			name: "trailing slash normalized",
			req:  RouteRequest{Authenticated: true, Path: "/admin/", Role: domain.RoleViewer, PasswordChanged: true},
			want: DecisionForbid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(policy, tc.req); got != tc.want {
				t.Fatalf("Authorize(%+v) = %s, want %s", tc.req, got, tc.want)
			}
		})
	}
}
