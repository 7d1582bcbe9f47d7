package roles

import (
	"fmt"
	"strings"
)

// Role is the authorization role stored on a user profile.
type Role string

const (
	RoleAdmin     Role = "admin"     // Full access to the admin panel, user management and settings
	RoleEditor    Role = "editor"    // Manages site content (courses, universities, destinations, blogs)
	RoleCounselor Role = "counselor" // Works student applications, read-only analytics
	RoleAgent     Role = "agent"     // Partner recruitment agent, uses the agent dashboard
	RoleStudent   Role = "student"   // Default role for every signed-up user
)

// DefaultRole is assigned to users that have no profile row yet.
const DefaultRole = RoleStudent

// hierarchy ranks roles, higher number = more privileges
var hierarchy = map[Role]int{
	RoleAdmin:     5,
	RoleEditor:    4,
	RoleCounselor: 3,
	RoleAgent:     2,
	RoleStudent:   1,
}

// All returns every role ordered from most to least privileged.
func All() []Role {
	return []Role{RoleAdmin, RoleEditor, RoleCounselor, RoleAgent, RoleStudent}
}

// Parse converts a stored or user supplied value into a Role.
func Parse(value string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := hierarchy[r]
	return ok
}

// Rank returns the hierarchy rank of the role, 0 for unknown roles.
func (r Role) Rank() int {
	return hierarchy[r]
}

func (r Role) String() string {
	return string(r)
}

// IsStaff reports whether the role belongs to the consultancy's own staff.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleEditor || r == RoleCounselor
}

// CanModifyRole reports whether a user holding current may assign target to someone.
// Only admins modify roles, and never above their own rank.
func CanModifyRole(current, target Role) bool {
	if current != RoleAdmin || !target.Valid() {
		return false
	}
	return current.Rank() >= target.Rank()
}
