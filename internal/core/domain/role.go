package domain

import (
	"fmt"
	"strings"
)

// Role is an authorisation tier. Privilege is totally ordered:
// owner ⊇ admin ⊇ user.
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// roleHierarchy maps each role to the set of roles it satisfies.
// Roles absent from this map satisfy nothing.
var roleHierarchy = map[Role][]Role{
	RoleOwner: {RoleOwner, RoleAdmin, RoleUser},
	RoleAdmin: {RoleAdmin, RoleUser},
	RoleUser:  {RoleUser},
}

// ParseRole converts a raw string into a Role, rejecting values outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Valid reports whether r is one of the recognised roles.
func (r Role) Valid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// Closure returns the effective permission set of r. The returned slice is a copy.
func (r Role) Closure() []Role {
	closure := roleHierarchy[r]
	if closure == nil {
		return nil
	}
	out := make([]Role, len(closure))
	copy(out, closure)
	return out
}

// Satisfies reports whether a principal holding r may act as required.
func (r Role) Satisfies(required Role) bool {
	for _, c := range roleHierarchy[r] {
		if c == required {
			return true
		}
	}
	return false
}
