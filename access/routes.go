package access

import "github.com/jrsteele09/go-admissions-auth/roles"

const (
	RouteSignIn      = "/auth"
	RouteAdminSignIn = "/admin/auth"
	RouteAdminHome   = "/admin"
	RouteAgentHome   = "/agent"
	RouteStudentHome = "/student-dashboard"
)

// ElevatedRoleHomes is where a signed-in user with the wrong role for a guard
// is sent. Roles missing from the table fall back to the guard's sign-in route.
var ElevatedRoleHomes = map[roles.Role]string{
	roles.RoleAdmin:     RouteAdminHome,
	roles.RoleEditor:    RouteAdminHome,
	roles.RoleCounselor: RouteAdminHome,
	roles.RoleAgent:     RouteAgentHome,
}

// HomeFor returns the landing route for role after sign-in.
func HomeFor(role roles.Role) string {
	if home, ok := ElevatedRoleHomes[role]; ok {
		return home
	}
	return RouteStudentHome
}
