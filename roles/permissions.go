package roles

// Permission names a capability derived from a role.
type Permission string

const (
	PermManageUsers    Permission = "canManageUsers"
	PermManageContent  Permission = "canManageContent"
	PermViewAnalytics  Permission = "canViewAnalytics"
	PermManageSettings Permission = "canManageSettings"
	PermViewAuditLogs  Permission = "canViewAuditLogs"
)

// PermissionSet is the static set of capabilities granted to a role.
type PermissionSet struct {
	CanManageUsers    bool `json:"canManageUsers"`
	CanManageContent  bool `json:"canManageContent"`
	CanViewAnalytics  bool `json:"canViewAnalytics"`
	CanManageSettings bool `json:"canManageSettings"`
	CanViewAuditLogs  bool `json:"canViewAuditLogs"`
}

var permissionTable = map[Role]PermissionSet{
	RoleAdmin: {
		CanManageUsers:    true,
		CanManageContent:  true,
		CanViewAnalytics:  true,
		CanManageSettings: true,
		CanViewAuditLogs:  true,
	},
	RoleEditor: {
		CanManageContent: true,
		CanViewAnalytics: true,
	},
	RoleCounselor: {
		CanViewAnalytics: true,
	},
	RoleAgent:   {},
	RoleStudent: {},
}

// PermissionsFor returns the permission set of a role. Unknown roles get nothing.
func PermissionsFor(r Role) PermissionSet {
	return permissionTable[r]
}

// Has reports whether the set grants p.
func (ps PermissionSet) Has(p Permission) bool {
	switch p {
	case PermManageUsers:
		return ps.CanManageUsers
	case PermManageContent:
		return ps.CanManageContent
	case PermViewAnalytics:
		return ps.CanViewAnalytics
	case PermManageSettings:
		return ps.CanManageSettings
	case PermViewAuditLogs:
		return ps.CanViewAuditLogs
	}
	return false
}

func HasPermission(r Role, p Permission) bool {
	return PermissionsFor(r).Has(p)
}

// Checker answers permission questions for one resolved role.
type Checker struct {
	role Role
}

// For binds a Checker to the role resolved for the current user.
func For(r Role) Checker {
	return Checker{role: r}
}

func (c Checker) Role() Role {
	return c.role
}

func (c Checker) HasPermission(p Permission) bool {
	return HasPermission(c.role, p)
}

func (c Checker) Permissions() PermissionSet {
	return PermissionsFor(c.role)
}

func (c Checker) CanModifyRole(target Role) bool {
	return CanModifyRole(c.role, target)
}
