// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity owns user credentials, roles and role assignments.

It plays the part of the credential store and the role store: repositories
persist accounts in the users schema, while [UserManager] and [RoleManager]
apply the identity rules (normalization, uniqueness, password policy, reset
tokens) and report expected failures as a [Result].

# Architecture

Services in the account and auth packages compose the managers. Nothing in this
package knows about HTTP.
*/
package identity

import "time"

// # Domain Entities

// User is a registered account.
type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"user_name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"` // Explicitly omitted from JSON for security.
	AccessFailedCount int        `json:"access_failed_count"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// Role is a named permission group.
type Role struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// UserWithRoles is the read model returned to profile and admin endpoints.
type UserWithRoles struct {
	ID          string     `json:"id"`
	UserName    string     `json:"user_name"`
	Email       string     `json:"email"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	Roles       []string   `json:"roles"`
}

// WithRoles builds the read model for user.
func (user *User) WithRoles(roles []string) *UserWithRoles {
	if roles == nil {
		roles = []string{}
	}
	return &UserWithRoles{
		ID:          user.ID,
		UserName:    user.Username,
		Email:       user.Email,
		LastLoginAt: user.LastLoginAt,
		Roles:       roles,
	}
}
