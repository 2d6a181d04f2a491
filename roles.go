package auth

import (
	"slices"
	"strings"
)

const (
	// RoleUser is assigned to every registered account
	RoleUser = "User"
	// RoleAdmin grants access to account administration routes
	RoleAdmin = "Admin"
)

// DefaultRoles are seeded by CreateSchema.
var DefaultRoles = []string{RoleUser, RoleAdmin}

var precedence = []string{RoleAdmin, RoleUser}

// rolePrecedence returns the sort rank for a role name. Unknown roles sort
// after the known ones.
func rolePrecedence(role string) int {
	if i := slices.Index(precedence, role); i >= 0 {
		return i
	}
	return len(precedence)
}

// SortRoles orders role names so the primary role comes first. The input is
// not modified.
func SortRoles(roles []string) []string {
	out := slices.Clone(roles)
	slices.SortStableFunc(out, func(a, b string) int {
		if pa, pb := rolePrecedence(a), rolePrecedence(b); pa != pb {
			return pa - pb
		}
		return strings.Compare(a, b)
	})
	return slices.Compact(out)
}

// PrimaryRole returns the highest precedence role or an empty string.
func PrimaryRole(roles []string) string {
	sorted := SortRoles(roles)
	if len(sorted) == 0 {
		return ""
	}
	return sorted[0]
}
