// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/platform/sec"
	"github.com/taibuivan/piggybank/internal/users/identity"
	"github.com/taibuivan/piggybank/internal/users/identity/identitytest"
)

const resetSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	store *identitytest.Store
	users *identity.UserManager
	roles *identity.RoleManager
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	resetTokens, err := sec.NewResetTokenProvider(resetSecret, time.Hour)
	require.NoError(t, err)

	store := identitytest.NewStore()
	roles := identity.NewRoleManager(store.Roles())
	require.NoError(t, identity.SeedRoles(context.Background(), roles, sec.DefaultRoles, slog.New(slog.NewTextHandler(io.Discard, nil))))

	users := identity.NewUserManager(store.Users(), store.Roles(), sec.BcryptHasher{Cost: bcrypt.MinCost}, resetTokens, identity.DefaultPasswordPolicy)
	return fixture{store: store, users: users, roles: roles}
}

func (f fixture) create(t *testing.T, username, email, password string) *identity.User {
	t.Helper()

	user := &identity.User{Username: username, Email: email}
	result, err := f.users.Create(context.Background(), user, password)
	require.NoError(t, err)
	require.True(t, result.Succeeded, "%+v", result.Errors)
	return user
}

func codes(result identity.Result) []string {
	var out []string
	for _, resultError := range result.Errors {
		out = append(out, resultError.Code)
	}
	return out
}

/*
TestPasswordPolicy lists every rule a candidate password breaks.
*/
func TestPasswordPolicy(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     []string
	}{
		{"valid", "Passw0rd", nil},
		{"seeded_admin", "Admin@1234", nil},
		{"too_short", "Pa1", []string{identity.CodePasswordTooShort}},
		{"no_digit", "Password", []string{identity.CodePasswordRequiresDigit}},
		{"no_lower", "PASSW0RD", []string{identity.CodePasswordRequiresLower}},
		{"no_upper", "passw0rd", []string{identity.CodePasswordRequiresUpper}},
		{"at_bcrypt_limit", "Passw0rd" + strings.Repeat("x", sec.MaxPasswordBytes-8), nil},
		{"over_bcrypt_limit", "Passw0rd" + strings.Repeat("x", sec.MaxPasswordBytes-7), []string{identity.CodePasswordTooLong}},
		{"multibyte_over_limit", "Passw0rd" + strings.Repeat("é", 33), []string{identity.CodePasswordTooLong}},
		{"empty", "", []string{identity.CodePasswordTooShort, identity.CodePasswordRequiresDigit, identity.CodePasswordRequiresLower, identity.CodePasswordRequiresUpper}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := identity.DefaultPasswordPolicy.Validate(tt.password)
			assert.Equal(t, tt.want, codes(identity.Failed(got...)))
		})
	}
}

/*
TestNormalize folds case and compatibility forms to one lookup key.
*/
func TestNormalize(t *testing.T) {
	assert.Equal(t, identity.Normalize("alice"), identity.Normalize("Alice"))
	assert.Equal(t, identity.Normalize("alice"), identity.Normalize("ＡＬＩＣＥ"))
	assert.Equal(t, identity.Normalize("bob@x.io"), identity.Normalize("  BOB@X.IO "))
	assert.NotEqual(t, identity.Normalize("alice"), identity.Normalize("alicia"))
}

/*
TestUserManager_Create covers validation, duplicate detection and persistence.
*/
func TestUserManager_Create(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		want     []string
	}{
		{"duplicate_username_case", "ALICE", "other@x.io", "Passw0rd", []string{identity.CodeDuplicateUserName}},
		{"duplicate_email_case", "carol", "Alice@X.io", "Passw0rd", []string{identity.CodeDuplicateEmail}},
		{"both_duplicated", "alice", "alice@x.io", "Passw0rd", []string{identity.CodeDuplicateUserName, identity.CodeDuplicateEmail}},
		{"invalid_username", "al ice", "al@x.io", "Passw0rd", []string{identity.CodeInvalidUserName}},
		{"username_with_at", "al@ice", "al@x.io", "Passw0rd", []string{identity.CodeInvalidUserName}},
		{"invalid_email", "dave", "not-an-email", "Passw0rd", []string{identity.CodeInvalidEmail}},
		{"weak_password", "erin", "erin@x.io", "short", []string{identity.CodePasswordTooShort, identity.CodePasswordRequiresDigit, identity.CodePasswordRequiresUpper}},
		{"long_password", "frank", "frank@x.io", "Passw0rd" + strings.Repeat("x", 72), []string{identity.CodePasswordTooLong}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.create(t, "alice", "alice@x.io", "Passw0rd")

			result, err := f.users.Create(context.Background(), &identity.User{Username: tt.username, Email: tt.email}, tt.password)
			require.NoError(t, err)
			assert.False(t, result.Succeeded)
			assert.Equal(t, tt.want, codes(result))
		})
	}

	t.Run("stores_hash_and_identity", func(t *testing.T) {
		f := newFixture(t)
		user := f.create(t, "alice", "alice@x.io", "Passw0rd")

		stored, found := f.store.User(user.ID)
		require.True(t, found)
		assert.NotEmpty(t, stored.ID)
		assert.NotEqual(t, "Passw0rd", stored.PasswordHash)
		assert.Zero(t, stored.AccessFailedCount)
		assert.False(t, stored.CreatedAt.IsZero())
		assert.True(t, f.users.CheckPassword(&stored, "Passw0rd"))
		assert.False(t, f.users.CheckPassword(&stored, "passw0rd"))
	})

	t.Run("storage_fault", func(t *testing.T) {
		f := newFixture(t)
		f.store.FailOn("Create", errors.New("connection reset"))

		_, err := f.users.Create(context.Background(), &identity.User{Username: "alice", Email: "alice@x.io"}, "Passw0rd")
		assert.Error(t, err)
	})
}

/*
TestUserManager_FindByIdentifier routes identifiers containing "@" to the email index.
*/
func TestUserManager_FindByIdentifier(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

	for _, identifier := range []string{"alice", "ALICE", "alice@x.io", "Alice@X.IO"} {
		found, err := f.users.FindByIdentifier(context.Background(), identifier)
		require.NoError(t, err, identifier)
		assert.Equal(t, alice.ID, found.ID)
	}

	_, err := f.users.FindByIdentifier(context.Background(), "nobody")
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestUserManager_AccessFailed increments the counter by exactly one per call.
*/
func TestUserManager_AccessFailed(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

	for want := 1; want <= 3; want++ {
		result, err := f.users.AccessFailed(context.Background(), alice)
		require.NoError(t, err)
		require.True(t, result.Succeeded)
		assert.Equal(t, want, alice.AccessFailedCount)
	}

	result, err := f.users.AccessFailed(context.Background(), &identity.User{ID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodeUserNotFound}, codes(result))
}

/*
TestUserManager_Update touches updated-at and keeps the counter out of profile writes.
*/
func TestUserManager_Update(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "alice@x.io", "Passw0rd")
	f.create(t, "bob", "bob@x.io", "Passw0rd")

	_, err := f.users.AccessFailed(context.Background(), alice)
	require.NoError(t, err)

	alice.Username = "Bob"
	result, err := f.users.Update(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodeDuplicateUserName}, codes(result))

	alice.Username = "alice2"
	alice.AccessFailedCount = 0
	result, err = f.users.Update(context.Background(), alice)
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	stored, _ := f.store.User(alice.ID)
	assert.Equal(t, "alice2", stored.Username)
	assert.NotNil(t, stored.UpdatedAt)
	assert.Equal(t, 1, stored.AccessFailedCount)
}

/*
TestUserManager_ChangePassword requires the current password before replacing it.
*/
func TestUserManager_ChangePassword(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

	result, err := f.users.ChangePassword(context.Background(), alice, "Wrong0ne", "N3wPassword")
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodePasswordMismatch}, codes(result))

	result, err = f.users.ChangePassword(context.Background(), alice, "Passw0rd", "")
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodeNoNewPassword}, codes(result))

	result, err = f.users.ChangePassword(context.Background(), alice, "Passw0rd", "weak")
	require.NoError(t, err)
	assert.False(t, result.Succeeded)

	result, err = f.users.ChangePassword(context.Background(), alice, "Passw0rd", "N3wPassword")
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	stored, _ := f.store.User(alice.ID)
	assert.True(t, f.users.CheckPassword(&stored, "N3wPassword"))
	assert.False(t, f.users.CheckPassword(&stored, "Passw0rd"))
	assert.NotNil(t, stored.UpdatedAt)

	t.Run("stale_copy", func(t *testing.T) {
		f := newFixture(t)
		alice := f.create(t, "alice", "alice@x.io", "Passw0rd")
		stale := *alice

		result, err := f.users.ChangePassword(context.Background(), alice, "Passw0rd", "N3wPassword")
		require.NoError(t, err)
		require.True(t, result.Succeeded)

		result, err = f.users.ChangePassword(context.Background(), &stale, "Passw0rd", "Th1rdPassword")
		require.NoError(t, err)
		assert.Equal(t, []string{identity.CodePasswordMismatch}, codes(result))

		stored, _ := f.store.User(alice.ID)
		assert.True(t, f.users.CheckPassword(&stored, "N3wPassword"))
	})
}

/*
TestUserManager_ResetPassword redeems a token once and rejects it after any password change.
*/
func TestUserManager_ResetPassword(t *testing.T) {
	t.Run("single_use", func(t *testing.T) {
		f := newFixture(t)
		alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

		token, err := f.users.GeneratePasswordResetToken(alice)
		require.NoError(t, err)

		result, err := f.users.ResetPassword(context.Background(), alice, token, "R3setPassword")
		require.NoError(t, err)
		require.True(t, result.Succeeded)

		result, err = f.users.ResetPassword(context.Background(), alice, token, "Ag4inPassword")
		require.NoError(t, err)
		assert.Equal(t, []string{identity.CodeInvalidToken}, codes(result))
	})

	t.Run("invalidated_by_change", func(t *testing.T) {
		f := newFixture(t)
		alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

		token, err := f.users.GeneratePasswordResetToken(alice)
		require.NoError(t, err)

		result, err := f.users.ChangePassword(context.Background(), alice, "Passw0rd", "Ch4ngedPassword")
		require.NoError(t, err)
		require.True(t, result.Succeeded)

		result, err = f.users.ResetPassword(context.Background(), alice, token, "R3setPassword")
		require.NoError(t, err)
		assert.Equal(t, []string{identity.CodeInvalidToken}, codes(result))
	})

	t.Run("concurrent_redemption", func(t *testing.T) {
		f := newFixture(t)
		alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

		token, err := f.users.GeneratePasswordResetToken(alice)
		require.NoError(t, err)

		first, err := f.users.FindByEmail(context.Background(), "alice@x.io")
		require.NoError(t, err)
		second, err := f.users.FindByEmail(context.Background(), "alice@x.io")
		require.NoError(t, err)

		result, err := f.users.ResetPassword(context.Background(), first, token, "R3setPassword")
		require.NoError(t, err)
		require.True(t, result.Succeeded)

		result, err = f.users.ResetPassword(context.Background(), second, token, "Ag4inPassword")
		require.NoError(t, err)
		assert.Equal(t, []string{identity.CodeInvalidToken}, codes(result))

		stored, _ := f.store.User(alice.ID)
		assert.True(t, f.users.CheckPassword(&stored, "R3setPassword"))
	})

	t.Run("last_login_keeps_new_hash", func(t *testing.T) {
		f := newFixture(t)
		alice := f.create(t, "alice", "alice@x.io", "Passw0rd")
		stale := *alice

		token, err := f.users.GeneratePasswordResetToken(alice)
		require.NoError(t, err)
		result, err := f.users.ResetPassword(context.Background(), alice, token, "R3setPassword")
		require.NoError(t, err)
		require.True(t, result.Succeeded)

		result, err = f.users.UpdateLastLogin(context.Background(), &stale, time.Now())
		require.NoError(t, err)
		require.True(t, result.Succeeded)

		stored, _ := f.store.User(alice.ID)
		assert.True(t, f.users.CheckPassword(&stored, "R3setPassword"))
		assert.False(t, f.users.CheckPassword(&stored, "Passw0rd"))
		assert.NotNil(t, stored.LastLoginAt)

		result, err = f.users.ResetPassword(context.Background(), &stored, token, "Ag4inPassword")
		require.NoError(t, err)
		assert.Equal(t, []string{identity.CodeInvalidToken}, codes(result))
	})

	t.Run("other_user", func(t *testing.T) {
		f := newFixture(t)
		alice := f.create(t, "alice", "alice@x.io", "Passw0rd")
		bob := f.create(t, "bob", "bob@x.io", "Passw0rd")

		token, err := f.users.GeneratePasswordResetToken(alice)
		require.NoError(t, err)

		result, err := f.users.ResetPassword(context.Background(), bob, token, "R3setPassword")
		require.NoError(t, err)
		assert.Equal(t, []string{identity.CodeInvalidToken}, codes(result))
	})
}

/*
TestUserManager_Roles covers assignment, de-duplication, unknown roles and removal.
*/
func TestUserManager_Roles(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

	roles, err := f.users.GetRoles(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []string{}, roles)

	result, err := f.users.AddToRoles(context.Background(), alice, []string{"Admin", "Ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodeInvalidRoleName}, codes(result))
	assert.Empty(t, f.store.RoleNames(alice.ID))

	result, err = f.users.AddToRoles(context.Background(), alice, []string{"user", "User", "ADMIN"})
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	assert.Equal(t, []string{"Admin", "User"}, f.store.RoleNames(alice.ID))

	byUser, err := f.users.GetRolesForUsers(context.Background(), []identity.User{*alice})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Admin", "User"}, byUser[alice.ID])

	result, err = f.users.RemoveFromRoles(context.Background(), alice, []string{"admin"})
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	assert.Equal(t, []string{"User"}, f.store.RoleNames(alice.ID))
}

/*
TestUserManager_Delete reports a missing account as a failed result.
*/
func TestUserManager_Delete(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "alice@x.io", "Passw0rd")

	result, err := f.users.Delete(context.Background(), alice)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	result, err = f.users.Delete(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodeUserNotFound}, codes(result))
}

/*
TestSeedRoles creates missing roles once and is a no-op afterwards.
*/
func TestSeedRoles(t *testing.T) {
	f := newFixture(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, identity.SeedRoles(context.Background(), f.roles, sec.DefaultRoles, logger))
	require.NoError(t, identity.SeedRoles(context.Background(), f.roles, []string{"admin", "Auditor"}, logger))

	for _, name := range []string{"Admin", "User", "Auditor"} {
		exists, err := f.roles.RoleExists(context.Background(), name)
		require.NoError(t, err)
		assert.True(t, exists, name)
	}

	result, err := f.roles.Create(context.Background(), "ADMIN")
	require.NoError(t, err)
	assert.Equal(t, []string{identity.CodeDuplicateRoleName}, codes(result))

	f.store.FailOn("FindByNormalizedName", errors.New("connection reset"))
	assert.Error(t, identity.SeedRoles(context.Background(), f.roles, sec.DefaultRoles, logger))
}

/*
TestResult_Err maps failure reasons to validation details.
*/
func TestResult_Err(t *testing.T) {
	assert.NoError(t, identity.Success().Err("Register failed."))

	err := identity.Failed(identity.ErrUserNotFound()).Err("User delete failure.")
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "User delete failure.", appErr.Message)
	require.Len(t, appErr.Details, 1)
	assert.Equal(t, identity.CodeUserNotFound, appErr.Details[0].Field)
}
