// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Well-Known Roles

const (
	// RoleAdmin grants access to user administration.
	RoleAdmin = "Admin"

	// RoleUser is assigned to every self-registered account.
	RoleUser = "User"
)

// DefaultRoles lists the roles that must exist in steady state.
var DefaultRoles = []string{RoleAdmin, RoleUser}

// # Policies

// Policy is a named authorization rule evaluated against verified role claims.
type Policy struct {
	Name  string
	Roles []string
}

var (
	// PolicyAdmin requires the Admin role.
	PolicyAdmin = Policy{Name: "AdminPolicy", Roles: []string{RoleAdmin}}

	// PolicyUser requires the User or the Admin role.
	PolicyUser = Policy{Name: "UserPolicy", Roles: []string{RoleUser, RoleAdmin}}
)

// Allows reports whether the claims satisfy the policy.
func (policy Policy) Allows(claims *AuthClaims) bool {
	if claims == nil {
		return false
	}
	for _, role := range policy.Roles {
		if claims.HasRole(role) {
			return true
		}
	}
	return false
}
