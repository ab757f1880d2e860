package model

import "strings"

// Role is the access level stored on an account and carried in session
// tokens.  Only the two values below are valid.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleNormalUser Role = "normal_user"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleNormalUser:
		return r, true
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleNormalUser
}

// RoleSet is the set of roles permitted to invoke an operation.  A nil or
// empty set permits nobody.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles, skipping unknown values.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.Valid() {
			s[r] = struct{}{}
		}
	}
	return s
}

// Allows reports whether r is a member of the set.
func (s RoleSet) Allows(r Role) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[r]
	return ok
}

// Roles returns the members in a stable order (admin first).
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for _, r := range []Role{RoleAdmin, RoleNormalUser} {
		if _, ok := s[r]; ok {
			out = append(out, r)
		}
	}
	return out
}
