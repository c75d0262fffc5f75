package rbac

import (
	"errors"
	"strings"
)

// ErrUnknownRole indicates a role string outside the fixed enumeration.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Role is a tenant membership role.
type Role string

// Roles ordered from most to least privileged.
const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStaff      Role = "staff"
	RoleViewer     Role = "viewer"
)

// roleLevels is the single source of truth for privilege ordering.
// Lower level means more privilege.
var roleLevels = map[Role]int{
	RoleOwner:      1,
	RoleAdmin:      2,
	RoleInstructor: 3,
	RoleStaff:      4,
	RoleViewer:     5,
}

// Roles returns every role ordered by hierarchy level.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleInstructor, RoleStaff, RoleViewer}
}

// ParseRole converts raw input into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleLevels[role]; !ok {
		return "", ErrUnknownRole
	}
	return role, nil
}

// Valid reports whether r is part of the enumeration.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// LevelOf returns the hierarchy level of a role. Roles outside the
// enumeration sort below viewer so they never compare as privileged.
func LevelOf(r Role) int {
	if level, ok := roleLevels[r]; ok {
		return level
	}
	return len(roleLevels) + 1
}

// IsAtLeast reports whether r is as privileged as threshold or more.
func IsAtLeast(r, threshold Role) bool {
	return LevelOf(r) <= LevelOf(threshold)
}
