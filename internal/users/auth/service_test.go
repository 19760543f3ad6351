// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/platform/mail"
	"github.com/taibuivan/piggybank/internal/platform/sec"
	"github.com/taibuivan/piggybank/internal/users/account"
	"github.com/taibuivan/piggybank/internal/users/auth"
	"github.com/taibuivan/piggybank/internal/users/identity"
	"github.com/taibuivan/piggybank/internal/users/identity/identitytest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (mailer *recordingMailer) Send(_ context.Context, message mail.Message) error {
	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	if mailer.err != nil {
		return mailer.err
	}
	mailer.messages = append(mailer.messages, message)
	return nil
}

// steppingClock advances one second on every read.
type steppingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (clock *steppingClock) Now() time.Time {
	clock.mu.Lock()
	defer clock.mu.Unlock()
	clock.now = clock.now.Add(time.Second)
	return clock.now
}

type fixture struct {
	service *auth.Service
	tokens  *sec.TokenService
	store   *identitytest.Store
	mailer  *recordingMailer
}

func newFixture(t *testing.T, transport auth.ResetTransport) fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := identitytest.NewStore()
	require.NoError(t, identity.SeedRoles(context.Background(), identity.NewRoleManager(store.Roles()), sec.DefaultRoles, logger))

	resetTokens, err := sec.NewResetTokenProvider(testSecret, time.Hour)
	require.NoError(t, err)

	tokens, err := sec.NewTokenService(sec.TokenConfig{Secret: testSecret, Issuer: "piggybank-test", Lifetime: 30 * time.Minute})
	require.NoError(t, err)
	clock := &steppingClock{now: time.Now()}
	tokens = tokens.WithClock(clock.Now)

	users := identity.NewUserManager(store.Users(), store.Roles(), sec.BcryptHasher{Cost: bcrypt.MinCost}, resetTokens, identity.DefaultPasswordPolicy)
	accounts := account.NewService(users, store, logger)
	mailer := &recordingMailer{}

	return fixture{
		service: auth.NewService(users, accounts, tokens, mailer, transport, logger),
		tokens:  tokens,
		store:   store,
		mailer:  mailer,
	}
}

func (f fixture) register(t *testing.T, email, username, password string) *identity.User {
	t.Helper()

	result, err := f.service.Register(context.Background(), auth.RegisterInput{Email: email, Username: username, Password: password})
	require.NoError(t, err)
	require.True(t, result.Succeeded, "%+v", result.Errors)

	user, err := f.store.Users().FindByNormalizedUsername(context.Background(), identity.Normalize(username))
	require.NoError(t, err)
	return user
}

/*
TestService_AliceScenario registers alice, logs her in and counts a failed attempt.
*/
func TestService_AliceScenario(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")
	assert.Equal(t, []string{sec.RoleUser}, f.store.RoleNames(alice.ID))

	payload, err := f.service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: "Passw0rd"})
	require.NoError(t, err)

	claims, err := f.tokens.VerifyToken(payload.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, claims.UserID())
	assert.Equal(t, []string{sec.RoleUser}, claims.Roles)

	stored, _ := f.store.User(alice.ID)
	assert.NotNil(t, stored.LastLoginAt)

	_, err = f.service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: "WrongPass"})
	require.Error(t, err)
	assert.True(t, apperr.IsUnauthorized(err))

	stored, _ = f.store.User(alice.ID)
	assert.Equal(t, 1, stored.AccessFailedCount)
}

/*
TestService_Login covers both identifier kinds and the uniform failure message.
*/
func TestService_Login(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    bool
	}{
		{"username", "alice", "Passw0rd", false},
		{"username_case_insensitive", "ALICE", "Passw0rd", false},
		{"email", "alice@example.com", "Passw0rd", false},
		{"email_case_insensitive", "Alice@Example.com", "Passw0rd", false},
		{"unknown_username", "mallory", "Passw0rd", true},
		{"unknown_email", "mallory@example.com", "Passw0rd", true},
		{"wrong_password", "alice", "passw0rd", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := f.service.Login(context.Background(), auth.LoginInput{Identifier: tt.identifier, Password: tt.password})
			if tt.wantErr {
				appErr := apperr.As(err)
				require.NotNil(t, appErr)
				assert.Equal(t, "Authentication failed.", appErr.Message)
				return
			}

			require.NoError(t, err)
			claims, err := f.tokens.VerifyToken(payload.Token)
			require.NoError(t, err)
			assert.Equal(t, alice.ID, claims.UserID())
		})
	}

	t.Run("counter_increments_per_failure", func(t *testing.T) {
		f := newFixture(t, auth.ResetViaEmail)
		bob := f.register(t, "bob@example.com", "bob", "Passw0rd")

		for want := 1; want <= 3; want++ {
			_, err := f.service.Login(context.Background(), auth.LoginInput{Identifier: "bob", Password: "nope"})
			require.Error(t, err)

			stored, _ := f.store.User(bob.ID)
			assert.Equal(t, want, stored.AccessFailedCount)
		}
	})

	t.Run("storage_fault_is_not_unauthorized", func(t *testing.T) {
		f := newFixture(t, auth.ResetViaEmail)
		f.store.FailOn("FindByNormalizedUsername", errors.New("connection reset"))

		_, err := f.service.Login(context.Background(), auth.LoginInput{Identifier: "bob", Password: "Passw0rd"})
		require.Error(t, err)
		assert.False(t, apperr.IsAppError(err))
	})
}

/*
TestService_RegisterThenLogin yields a token carrying only the User role.
*/
func TestService_RegisterThenLogin(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	f.register(t, "carol@example.com", "carol", "S3curePass")

	payload, err := f.service.Login(context.Background(), auth.LoginInput{Identifier: "carol", Password: "S3curePass"})
	require.NoError(t, err)

	claims, err := f.tokens.VerifyToken(payload.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{sec.RoleUser}, claims.Roles)

	result, err := f.service.Register(context.Background(), auth.RegisterInput{Email: "CAROL@example.com", Username: "carol2", Password: "S3curePass"})
	require.NoError(t, err)
	require.False(t, result.Succeeded)
	assert.Equal(t, identity.CodeDuplicateEmail, result.Errors[0].Code)
}

/*
TestService_RefreshToken issues distinct tokens with non-decreasing expiry and current roles.
*/
func TestService_RefreshToken(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	first, err := f.service.RefreshToken(context.Background(), alice.ID)
	require.NoError(t, err)
	second, err := f.service.RefreshToken(context.Background(), alice.ID)
	require.NoError(t, err)

	firstClaims, err := f.tokens.VerifyToken(first.Token)
	require.NoError(t, err)
	secondClaims, err := f.tokens.VerifyToken(second.Token)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
	assert.False(t, second.ExpiresAt.Before(first.ExpiresAt))

	admin, err := f.store.Roles().FindByNormalizedName(context.Background(), identity.Normalize(sec.RoleAdmin))
	require.NoError(t, err)
	require.NoError(t, f.store.Roles().AddToRoles(context.Background(), alice.ID, []string{admin.ID}))

	third, err := f.service.RefreshToken(context.Background(), alice.ID)
	require.NoError(t, err)
	thirdClaims, err := f.tokens.VerifyToken(third.Token)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{sec.RoleAdmin, sec.RoleUser}, thirdClaims.Roles)

	_, err = f.service.RefreshToken(context.Background(), "missing")
	assert.True(t, apperr.IsUnauthorized(err))
}

/*
TestService_UserInfo returns the account with its roles.
*/
func TestService_UserInfo(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	info, err := f.service.UserInfo(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.UserName)
	assert.Equal(t, []string{sec.RoleUser}, info.Roles)

	_, err = f.service.UserInfo(context.Background(), "missing")
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestService_UpdateProfile changes username and email but never roles.
*/
func TestService_UpdateProfile(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	result, err := f.service.UpdateProfile(context.Background(), alice.ID, auth.UpdateProfileInput{Username: "alicia", Email: "alicia@example.com"})
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	stored, _ := f.store.User(alice.ID)
	assert.Equal(t, "alicia", stored.Username)
	assert.Equal(t, "alicia@example.com", stored.Email)
	assert.NotNil(t, stored.UpdatedAt)
	assert.Equal(t, []string{sec.RoleUser}, f.store.RoleNames(alice.ID))

	result, err = f.service.UpdateProfile(context.Background(), "missing", auth.UpdateProfileInput{Username: "x", Email: "x@example.com"})
	require.NoError(t, err)
	assert.Equal(t, identity.CodeUserNotFound, result.Errors[0].Code)
}

/*
TestService_ChangePassword re-verifies the current password.
*/
func TestService_ChangePassword(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	result, err := f.service.ChangePassword(context.Background(), alice.ID, auth.ChangePasswordInput{CurrentPassword: "Wr0ngPass", NewPassword: "N3wPassword"})
	require.NoError(t, err)
	assert.Equal(t, identity.CodePasswordMismatch, result.Errors[0].Code)

	result, err = f.service.ChangePassword(context.Background(), alice.ID, auth.ChangePasswordInput{CurrentPassword: "Passw0rd", NewPassword: ""})
	require.NoError(t, err)
	assert.Equal(t, identity.CodeNoNewPassword, result.Errors[0].Code)

	result, err = f.service.ChangePassword(context.Background(), alice.ID, auth.ChangePasswordInput{CurrentPassword: "Passw0rd", NewPassword: "N3wPassword"})
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	_, err = f.service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: "N3wPassword"})
	assert.NoError(t, err)

	_, err = f.service.ChangePassword(context.Background(), "missing", auth.ChangePasswordInput{CurrentPassword: "Passw0rd", NewPassword: "N3wPassword"})
	assert.True(t, apperr.IsNotFound(err))
}

var tokenLine = regexp.MustCompile(`(?m)^([A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+)$`)

/*
TestService_ForgotPassword_Email mails the token and hides unknown addresses.
*/
func TestService_ForgotPassword_Email(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	f.register(t, "alice@example.com", "alice", "Passw0rd")

	dispatch, err := f.service.ForgotPassword(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.ResetViaEmail, dispatch.Transport)
	assert.Empty(t, dispatch.Token)

	require.Len(t, f.mailer.messages, 1)
	message := f.mailer.messages[0]
	assert.Equal(t, "alice@example.com", message.To)

	match := tokenLine.FindStringSubmatch(message.Body)
	require.Len(t, match, 2)

	result, err := f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{Email: "alice@example.com", Token: match[1], NewPassword: "R3setPassword"})
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	dispatch, err = f.service.ForgotPassword(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.ResetViaEmail, dispatch.Transport)
	assert.Len(t, f.mailer.messages, 1)

	f.mailer.err = errors.New("smtp down")
	_, err = f.service.ForgotPassword(context.Background(), "alice@example.com")
	assert.Error(t, err)
}

/*
TestService_ForgotPassword_Response returns the token and reports unknown addresses.
*/
func TestService_ForgotPassword_Response(t *testing.T) {
	f := newFixture(t, auth.ResetInResponse)
	f.register(t, "alice@example.com", "alice", "Passw0rd")

	dispatch, err := f.service.ForgotPassword(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.ResetInResponse, dispatch.Transport)
	assert.NotEmpty(t, dispatch.Token)
	assert.Empty(t, f.mailer.messages)

	_, err = f.service.ForgotPassword(context.Background(), "nobody@example.com")
	assert.True(t, apperr.IsNotFound(err))

	token, err := f.service.GeneratePasswordResetToken(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)
}

/*
TestService_ResetPassword rejects tokens after any password change and for unknown users.
*/
func TestService_ResetPassword(t *testing.T) {
	f := newFixture(t, auth.ResetInResponse)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	token, err := f.service.GeneratePasswordResetToken(context.Background(), "alice@example.com")
	require.NoError(t, err)

	result, err := f.service.ChangePassword(context.Background(), alice.ID, auth.ChangePasswordInput{CurrentPassword: "Passw0rd", NewPassword: "Ch4ngedPass"})
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	result, err = f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{Email: "alice@example.com", Token: token, NewPassword: "R3setPassword"})
	require.NoError(t, err)
	assert.Equal(t, identity.CodeInvalidToken, result.Errors[0].Code)

	token, err = f.service.GeneratePasswordResetToken(context.Background(), "alice@example.com")
	require.NoError(t, err)

	result, err = f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{Email: "alice@example.com", Token: token, NewPassword: "R3setPassword"})
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	result, err = f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{Email: "alice@example.com", Token: token, NewPassword: "Ag4inPassword"})
	require.NoError(t, err)
	assert.Equal(t, identity.CodeInvalidToken, result.Errors[0].Code)

	result, err = f.service.ResetPassword(context.Background(), auth.ResetPasswordInput{Email: "nobody@example.com", Token: token, NewPassword: "R3setPassword"})
	require.NoError(t, err)
	assert.Equal(t, identity.CodeUserNotFound, result.Errors[0].Code)
}

/*
TestService_DeleteAccount keeps the account when role removal fails.
*/
func TestService_DeleteAccount(t *testing.T) {
	f := newFixture(t, auth.ResetViaEmail)
	alice := f.register(t, "alice@example.com", "alice", "Passw0rd")

	f.store.FailOn("RemoveFromRoles", errors.New("connection reset"))
	_, err := f.service.DeleteAccount(context.Background(), alice.ID)
	require.Error(t, err)

	_, found := f.store.User(alice.ID)
	assert.True(t, found)

	f.store.FailOn("RemoveFromRoles", nil)
	result, err := f.service.DeleteAccount(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.True(t, result.Succeeded)

	_, found = f.store.User(alice.ID)
	assert.False(t, found)

	_, err = f.service.Login(context.Background(), auth.LoginInput{Identifier: "alice", Password: "Passw0rd"})
	assert.True(t, apperr.IsUnauthorized(err))
}
