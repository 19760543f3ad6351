// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/platform/dberr"
	"github.com/taibuivan/piggybank/internal/platform/sec"
	"github.com/taibuivan/piggybank/pkg/pointer"
	"github.com/taibuivan/piggybank/pkg/slice"
	"github.com/taibuivan/piggybank/pkg/uuid"
)

// Unique constraint names from data/migrations.
const (
	constraintUniqueUsername = "account_normalizedusername_key"
	constraintUniqueEmail    = "account_normalizedemail_key"
)

// ResetTokenProvider issues and checks password reset tokens bound to a hash.
type ResetTokenProvider interface {
	Generate(userID, passwordHash string) (string, error)
	Validate(token, userID, passwordHash string) error
}

// # User Manager

// UserManager applies identity rules on top of the user and role repositories.
//
// Methods returning a [Result] report expected failures there; the error
// return is reserved for unexpected faults.
type UserManager struct {
	users       UserRepository
	roles       RoleRepository
	hasher      sec.Hasher
	resetTokens ResetTokenProvider
	policy      PasswordPolicy
	now         Clock
}

// NewUserManager creates a [UserManager].
func NewUserManager(users UserRepository, roles RoleRepository, hasher sec.Hasher, resetTokens ResetTokenProvider, policy PasswordPolicy) *UserManager {
	return &UserManager{
		users:       users,
		roles:       roles,
		hasher:      hasher,
		resetTokens: resetTokens,
		policy:      policy,
		now:         time.Now,
	}
}

// WithClock returns a copy of the manager reading time from now.
func (manager *UserManager) WithClock(now Clock) *UserManager {
	clone := *manager
	clone.now = now
	return &clone
}

// # Lookups

// FindByID returns the account or an [apperr.NotFound] error.
func (manager *UserManager) FindByID(context context.Context, id string) (*User, error) {
	return manager.users.FindByID(context, id)
}

// FindByEmail looks the account up by normalized email.
func (manager *UserManager) FindByEmail(context context.Context, email string) (*User, error) {
	return manager.users.FindByNormalizedEmail(context, Normalize(email))
}

// FindByUsername looks the account up by normalized username.
func (manager *UserManager) FindByUsername(context context.Context, username string) (*User, error) {
	return manager.users.FindByNormalizedUsername(context, Normalize(username))
}

// FindByIdentifier treats identifiers containing "@" as emails and others as usernames.
func (manager *UserManager) FindByIdentifier(context context.Context, identifier string) (*User, error) {
	if strings.Contains(identifier, "@") {
		return manager.FindByEmail(context, identifier)
	}
	return manager.FindByUsername(context, identifier)
}

// List returns every account.
func (manager *UserManager) List(context context.Context) ([]User, error) {
	return manager.users.List(context)
}

// # Account Lifecycle

/*
Create validates and stores a new account with a hashed password.

Parameters:
  - context: context.Context
  - user: *User (Username and Email set; ID and timestamps are assigned here)
  - password: string (plain text, checked against the password policy)

Returns:
  - Result: Failed on invalid or duplicate username/email or a weak password
  - error: Hashing or persistence faults
*/
func (manager *UserManager) Create(context context.Context, user *User, password string) (Result, error) {
	failures := validateAccount(user)
	failures = append(failures, manager.policy.Validate(password)...)

	duplicates, err := manager.duplicates(context, user)
	if err != nil {
		return Result{}, err
	}
	failures = append(failures, duplicates...)

	if len(failures) > 0 {
		return Failed(failures...), nil
	}

	hash, err := manager.hasher.Hash(password)
	if err != nil {
		return Result{}, fmt.Errorf("identity_hash_failed: %w", err)
	}

	user.ID = uuid.New()
	user.PasswordHash = hash
	user.AccessFailedCount = 0
	user.CreatedAt = manager.now().UTC()

	if err := manager.users.Create(context, user); err != nil {
		return manager.classifyWriteError(user, err)
	}
	return Success(), nil
}

/*
Update persists profile changes and touches updated-at.

Returns:
  - Result: Failed on invalid or duplicate username/email, or a missing account
  - error: Persistence faults
*/
func (manager *UserManager) Update(context context.Context, user *User) (Result, error) {
	failures := validateAccount(user)

	duplicates, err := manager.duplicates(context, user)
	if err != nil {
		return Result{}, err
	}
	failures = append(failures, duplicates...)

	if len(failures) > 0 {
		return Failed(failures...), nil
	}

	user.UpdatedAt = pointer.To(manager.now().UTC())
	return manager.save(context, user)
}

// Delete removes the account row. Role assignments must already be gone.
func (manager *UserManager) Delete(context context.Context, user *User) (Result, error) {
	if err := manager.users.Delete(context, user.ID); err != nil {
		if apperr.IsNotFound(err) {
			return Failed(ErrUserNotFound()), nil
		}
		return Result{}, err
	}
	return Success(), nil
}

// UpdateLastLogin records a successful sign-in at the given instant. Only the
// last-login column is written.
func (manager *UserManager) UpdateLastLogin(context context.Context, user *User, at time.Time) (Result, error) {
	at = at.UTC()
	if err := manager.users.UpdateLastLogin(context, user.ID, at); err != nil {
		if apperr.IsNotFound(err) {
			return Failed(ErrUserNotFound()), nil
		}
		return Result{}, err
	}
	user.LastLoginAt = pointer.To(at)
	return Success(), nil
}

// # Credentials

// CheckPassword reports whether password matches the stored hash.
func (manager *UserManager) CheckPassword(user *User, password string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return manager.hasher.Verify(user.PasswordHash, password)
}

// AccessFailed atomically increments the failed-access counter.
func (manager *UserManager) AccessFailed(context context.Context, user *User) (Result, error) {
	count, err := manager.users.IncrementAccessFailed(context, user.ID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return Failed(ErrUserNotFound()), nil
		}
		return Result{}, err
	}
	user.AccessFailedCount = count
	return Success(), nil
}

/*
ChangePassword replaces the password after re-verifying the current one.

Returns:
  - Result: Failed with PasswordMismatch, NoNewPassword or policy errors
  - error: Hashing or persistence faults
*/
func (manager *UserManager) ChangePassword(context context.Context, user *User, currentPassword, newPassword string) (Result, error) {
	if !manager.CheckPassword(user, currentPassword) {
		return Failed(errPasswordMismatch()), nil
	}
	return manager.replacePassword(context, user, newPassword, errPasswordMismatch())
}

// GeneratePasswordResetToken issues a reset token bound to the current hash.
func (manager *UserManager) GeneratePasswordResetToken(user *User) (string, error) {
	token, err := manager.resetTokens.Generate(user.ID, user.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("identity_reset_token_failed: %w", err)
	}
	return token, nil
}

/*
ResetPassword redeems a reset token and stores the new password.

The token is checked against the hash that was read, and the write only
lands while that hash is still stored. A token therefore fails once the
password has changed by any means, including a concurrent redemption.

Returns:
  - Result: Failed with InvalidToken or policy errors
  - error: Hashing or persistence faults
*/
func (manager *UserManager) ResetPassword(context context.Context, user *User, token, newPassword string) (Result, error) {
	if err := manager.resetTokens.Validate(token, user.ID, user.PasswordHash); err != nil {
		return Failed(errInvalidToken()), nil
	}
	return manager.replacePassword(context, user, newPassword, errInvalidToken())
}

// replacePassword stores a new hash, reporting stale when another write
// replaced the hash user was loaded with.
func (manager *UserManager) replacePassword(context context.Context, user *User, newPassword string, stale ResultError) (Result, error) {
	if newPassword == "" {
		return Failed(ErrNoNewPassword()), nil
	}
	if failures := manager.policy.Validate(newPassword); len(failures) > 0 {
		return Failed(failures...), nil
	}

	hash, err := manager.hasher.Hash(newPassword)
	if err != nil {
		return Result{}, fmt.Errorf("identity_hash_failed: %w", err)
	}

	updatedAt := manager.now().UTC()
	if err := manager.users.UpdatePasswordHash(context, user.ID, user.PasswordHash, hash, updatedAt); err != nil {
		if errors.Is(err, ErrStalePasswordHash) {
			return Failed(stale), nil
		}
		return Result{}, fmt.Errorf("identity_password_write_failed: %w", err)
	}

	user.PasswordHash = hash
	user.UpdatedAt = pointer.To(updatedAt)
	return Success(), nil
}

// # Role Assignment

// GetRoles returns the role names assigned to user.
func (manager *UserManager) GetRoles(context context.Context, user *User) ([]string, error) {
	roles, err := manager.roles.RolesForUser(context, user.ID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

// GetRolesForUsers returns the role names of several users keyed by ID.
func (manager *UserManager) GetRolesForUsers(context context.Context, users []User) (map[string][]string, error) {
	return manager.roles.RolesForUsers(context, slice.Map(users, func(user User) string { return user.ID }))
}

/*
AddToRoles assigns roles to user. Names are matched after normalization and
duplicates are collapsed.

Returns:
  - Result: Failed with InvalidRoleName for each unknown role; nothing is assigned then
  - error: Persistence faults
*/
func (manager *UserManager) AddToRoles(context context.Context, user *User, roles []string) (Result, error) {
	var (
		roleIDs  []string
		failures []ResultError
	)

	for _, name := range slice.UniqueBy(roles, Normalize) {
		role, err := manager.roles.FindByNormalizedName(context, Normalize(name))
		if err != nil {
			if apperr.IsNotFound(err) {
				failures = append(failures, errInvalidRoleName(name))
				continue
			}
			return Result{}, err
		}
		roleIDs = append(roleIDs, role.ID)
	}

	if len(failures) > 0 {
		return Failed(failures...), nil
	}
	if len(roleIDs) == 0 {
		return Success(), nil
	}

	if err := manager.roles.AddToRoles(context, user.ID, roleIDs); err != nil {
		return Result{}, err
	}
	return Success(), nil
}

// RemoveFromRoles drops the given role assignments of user.
func (manager *UserManager) RemoveFromRoles(context context.Context, user *User, roles []string) (Result, error) {
	if len(roles) == 0 {
		return Success(), nil
	}
	if err := manager.roles.RemoveFromRoles(context, user.ID, slice.Map(roles, Normalize)); err != nil {
		return Result{}, err
	}
	return Success(), nil
}

// # Internal Helpers

func (manager *UserManager) save(context context.Context, user *User) (Result, error) {
	if err := manager.users.Update(context, user); err != nil {
		if apperr.IsNotFound(err) {
			return Failed(ErrUserNotFound()), nil
		}
		return manager.classifyWriteError(user, err)
	}
	return Success(), nil
}

// duplicates reports username/email collisions with other accounts.
func (manager *UserManager) duplicates(context context.Context, user *User) ([]ResultError, error) {
	var failures []ResultError

	existing, err := manager.users.FindByNormalizedUsername(context, Normalize(user.Username))
	switch {
	case err == nil && existing.ID != user.ID:
		failures = append(failures, errDuplicateUserName(user.Username))
	case err != nil && !apperr.IsNotFound(err):
		return nil, err
	}

	existing, err = manager.users.FindByNormalizedEmail(context, Normalize(user.Email))
	switch {
	case err == nil && existing.ID != user.ID:
		failures = append(failures, errDuplicateEmail(user.Email))
	case err != nil && !apperr.IsNotFound(err):
		return nil, err
	}

	return failures, nil
}

// classifyWriteError turns unique violations from concurrent writers into results.
func (manager *UserManager) classifyWriteError(user *User, err error) (Result, error) {
	if !dberr.IsUniqueViolation(err) {
		return Result{}, err
	}

	switch dberr.ConstraintName(err) {
	case constraintUniqueUsername:
		return Failed(errDuplicateUserName(user.Username)), nil
	case constraintUniqueEmail:
		return Failed(errDuplicateEmail(user.Email)), nil
	default:
		return Failed(errDuplicateUserName(user.Username), errDuplicateEmail(user.Email)), nil
	}
}

// # Role Manager

// RoleManager creates and inspects roles.
type RoleManager struct {
	roles RoleRepository
	now   Clock
}

// NewRoleManager creates a [RoleManager].
func NewRoleManager(roles RoleRepository) *RoleManager {
	return &RoleManager{roles: roles, now: time.Now}
}

// RoleExists reports whether a role with the normalized name exists.
func (manager *RoleManager) RoleExists(context context.Context, name string) (bool, error) {
	_, err := manager.roles.FindByNormalizedName(context, Normalize(name))
	if err == nil {
		return true, nil
	}
	if apperr.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// Create stores a new role.
func (manager *RoleManager) Create(context context.Context, name string) (Result, error) {
	if strings.TrimSpace(name) == "" {
		return Failed(errInvalidRoleName(name)), nil
	}

	role := &Role{ID: uuid.New(), Name: strings.TrimSpace(name), CreatedAt: manager.now().UTC()}
	if err := manager.roles.Create(context, role); err != nil {
		if dberr.IsUniqueViolation(err) {
			return Failed(ResultError{Code: CodeDuplicateRoleName, Description: fmt.Sprintf("Role name '%s' is already taken.", name)}), nil
		}
		return Result{}, err
	}
	return Success(), nil
}
