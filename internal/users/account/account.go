// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account handles administrative user management.

It composes the identity managers into the account-level operations used by
the admin endpoints and by the auth flows: reads with roles, creation with
role assignment, profile and role updates, and deletion.

# Architecture

  - Inputs: CreateInput, UpdateInput.
  - Domain: Depends on the identity package for users, roles and results.
  - Consistency: Multi-step writes run inside one database transaction.
*/
package account

import (
	"context"

	"github.com/taibuivan/piggybank/internal/platform/sec"
)

// # Contracts

// Transactor runs fn inside a single database transaction.
//
// Repositories pick the transaction up from the context handed to fn.
type Transactor interface {
	WithinTx(context context.Context, fn func(context context.Context) error) error
}

// # Inputs

// CreateInput describes a new account and its initial roles.
type CreateInput struct {
	Username string
	Email    string
	Password string
	Roles    []string
}

// UpdateInput describes profile changes. A non-empty Roles replaces every
// current role assignment; an empty one leaves them untouched.
type UpdateInput struct {
	Username string
	Email    string
	Roles    []string
}

// # Default Accounts

// DefaultUser is an account created at boot in development.
type DefaultUser struct {
	Username string
	Email    string
	Password string
	Role     string
}

// DefaultUsers are the development accounts created when seeding is enabled.
var DefaultUsers = []DefaultUser{
	{Username: "PiggyAdmin", Email: "admin@dev.com", Password: "Admin@1234", Role: sec.RoleAdmin},
	{Username: "PiggyUser", Email: "user@dev.com", Password: "User@1234", Role: sec.RoleUser},
}
