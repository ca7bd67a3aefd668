package register

import "sort"

// UserRole is a role granted to a user account
type UserRole = string

const (
	// RoleUser is the default role for self-registered accounts
	RoleUser UserRole = "user"
	// RoleSupervisor can approve two-step registrations
	RoleSupervisor UserRole = "supervisor"
	// RoleAdmin manages accounts
	RoleAdmin UserRole = "admin"
)

// IsValidRole checks if the role is one of the predefined roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleSupervisor, RoleAdmin:
		return true
	default:
		return false
	}
}

// DefaultRoles returns the roles assigned to a fresh registration
func DefaultRoles() []UserRole {
	return []UserRole{RoleUser}
}

// HasRole reports whether the role list contains the given role
func HasRole(roles []UserRole, role UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// EqualRoles compares two role lists ignoring order and duplicates do not
// collapse: ["a","a"] != ["a"].
func EqualRoles(a, b []UserRole) bool {
	if len(a) != len(b) {
		return false
	}

	as := append([]UserRole(nil), a...)
	bs := append([]UserRole(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)

	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
