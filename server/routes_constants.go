package server

import "github.com/jrsteele09/go-admissions-auth/access"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"

	// Sign-in and the OAuth flow
	RouteSignIn      = access.RouteSignIn
	RouteAdminSignIn = access.RouteAdminSignIn
	RouteOAuthStart  = "/auth/oauth/start"
	RouteCallback    = "/auth/callback"
	RouteAuthLogout  = "/auth/logout"

	// Session bootstrap
	RouteAPISession = "/api/session"

	// Guarded subtrees
	RouteAdmin   = access.RouteAdminHome
	RouteAgent   = access.RouteAgentHome
	RouteStudent = access.RouteStudentHome

	// Admin API, relative to RouteAdmin
	RouteAdminAPIUsers    = "/api/users"
	RouteAdminAPIUserRole = "/api/users/{userID}/role"
	RouteAdminAPIAudit    = "/api/audit-logs"
)
