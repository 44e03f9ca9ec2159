package auth

import (
	"sort"
	"strings"
)

// RoleSet is a set of role names. Roles are capabilities: no role implies
// another one.
type RoleSet map[string]struct{}

// NewRoleSet builds a set from role names. Names are trimmed the same way
// NormalizeRoles trims principal roles, blank names are ignored.
func NewRoleSet(roles ...string) RoleSet {
	set := make(RoleSet, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		set[role] = struct{}{}
	}
	return set
}

// Has reports whether role is in the set
func (s RoleSet) Has(role string) bool {
	_, ok := s[strings.TrimSpace(role)]
	return ok
}

// Intersects reports whether both sets share at least one role.
// An empty set intersects nothing.
func (s RoleSet) Intersects(other RoleSet) bool {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for role := range small {
		if large.Has(role) {
			return true
		}
	}
	return false
}

// Slice returns the roles sorted by name
func (s RoleSet) Slice() []string {
	out := make([]string, 0, len(s))
	for role := range s {
		out = append(out, role)
	}
	sort.Strings(out)
	return out
}
