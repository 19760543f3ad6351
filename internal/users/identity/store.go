// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"time"
)

// ErrStalePasswordHash reports that the stored hash no longer matches the one
// a password write was based on.
var ErrStalePasswordHash = errors.New("identity: password hash changed")

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// Lookups return an [apperr.NotFound] error when no row matches. Writes run on
// the transaction bound to the context, if any.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByNormalizedEmail returns the account whose normalized email matches.

		Parameters:
		  - context: context.Context
		  - normalizedEmail: string (see [Normalize])

		Returns:
		  - *User: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByNormalizedEmail(context context.Context, normalizedEmail string) (*User, error)

	/*
		FindByNormalizedUsername returns the account whose normalized username matches.

		Parameters:
		  - context: context.Context
		  - normalizedUsername: string (see [Normalize])

		Returns:
		  - *User: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByNormalizedUsername(context context.Context, normalizedUsername string) (*User, error)

	/*
		List returns every account ordered by creation time.

		Parameters:
		  - context: context.Context

		Returns:
		  - []User: All accounts
		  - error: Database retrieval failures
	*/
	List(context context.Context) ([]User, error)

	/*
		Create persists a brand-new user account.

		Parameters:
		  - context: context.Context
		  - user: *User (ID, hash and timestamps already set)

		Returns:
		  - error: Unique violations (see dberr) or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		Update persists the profile: username, email and updated-at.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: NotFound, unique violations or persistence failures
	*/
	Update(context context.Context, user *User) error

	/*
		UpdateLastLogin sets only the last-login instant.

		Parameters:
		  - context: context.Context
		  - id: string
		  - at: time.Time

		Returns:
		  - error: NotFound or persistence failures
	*/
	UpdateLastLogin(context context.Context, id string, at time.Time) error

	/*
		UpdatePasswordHash swaps the hash only while the stored one still equals
		currentHash.

		Parameters:
		  - context: context.Context
		  - id: string
		  - currentHash: string (the hash the caller verified against)
		  - newHash: string
		  - updatedAt: time.Time

		Returns:
		  - error: [ErrStalePasswordHash] when no row matched, or persistence failures
	*/
	UpdatePasswordHash(context context.Context, id, currentHash, newHash string, updatedAt time.Time) error

	/*
		IncrementAccessFailed atomically adds one to the failed-access counter.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - int: The counter after the increment
		  - error: NotFound or persistence failures
	*/
	IncrementAccessFailed(context context.Context, id string) (int, error)

	/*
		Delete removes the account row.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - error: NotFound or persistence failures
	*/
	Delete(context context.Context, id string) error
}

// # Role Data Access

// RoleRepository defines the data access contract for roles and assignments.
type RoleRepository interface {

	/*
		FindByNormalizedName returns the role whose normalized name matches.

		Parameters:
		  - context: context.Context
		  - normalizedName: string

		Returns:
		  - *Role: Hydrated entity
		  - error: NotFound or database retrieval failures
	*/
	FindByNormalizedName(context context.Context, normalizedName string) (*Role, error)

	/*
		Create persists a new role.

		Parameters:
		  - context: context.Context
		  - role: *Role

		Returns:
		  - error: Unique violations or persistence failures
	*/
	Create(context context.Context, role *Role) error

	/*
		RolesForUser returns the role names assigned to the user.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []string: Role names ordered by name
		  - error: Database retrieval failures
	*/
	RolesForUser(context context.Context, userID string) ([]string, error)

	/*
		RolesForUsers returns the role names of several users at once.

		Parameters:
		  - context: context.Context
		  - userIDs: []string

		Returns:
		  - map[string][]string: Role names keyed by user ID
		  - error: Database retrieval failures
	*/
	RolesForUsers(context context.Context, userIDs []string) (map[string][]string, error)

	/*
		AddToRoles assigns the roles to the user; existing assignments are kept.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - roleIDs: []string

		Returns:
		  - error: Persistence failures
	*/
	AddToRoles(context context.Context, userID string, roleIDs []string) error

	/*
		RemoveFromRoles drops the named role assignments of the user.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - normalizedNames: []string

		Returns:
		  - error: Persistence failures
	*/
	RemoveFromRoles(context context.Context, userID string, normalizedNames []string) error
}

// Clock returns the current time. Tests replace it.
type Clock func() time.Time
