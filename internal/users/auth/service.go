// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the authentication flows of Piggybank.

It covers login by username or email, registration, access token refresh,
profile and password changes, password recovery and account deletion.

Architecture:

  - Service: Orchestrates the flows over the identity managers and account service.
  - Tokens: Stateless HS256 access tokens; logout is a client-side operation.
  - Recovery: Reset tokens are bound to the current password hash and are
    delivered by email or, when configured, in the response.

Expected failures come back as an [identity.Result] or an [apperr.AppError];
only unexpected faults are returned as plain errors.
*/
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/platform/mail"
	"github.com/taibuivan/piggybank/internal/platform/sec"
	"github.com/taibuivan/piggybank/internal/users/account"
	"github.com/taibuivan/piggybank/internal/users/identity"
)

// # Contracts & Types

// TokenIssuer signs access tokens for a subject and its roles.
type TokenIssuer interface {
	Generate(userID string, roles []string) (sec.Token, error)
}

// ResetTransport selects how password reset tokens reach the user.
type ResetTransport string

const (
	// ResetViaEmail sends the token through the mail collaborator.
	ResetViaEmail ResetTransport = "email"

	// ResetInResponse returns the token in the forgot-password response.
	ResetInResponse ResetTransport = "response"
)

// TokenPayload is the access token handed to clients.
type TokenPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetDispatch reports how a reset token was delivered.
// Token is only set for [ResetInResponse].
type ResetDispatch struct {
	Transport ResetTransport
	Token     string
}

// Service implements the authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to credential checks,
// token issuance or password recovery must be reviewed by the security team.
type Service struct {
	users          *identity.UserManager
	accounts       *account.Service
	tokens         TokenIssuer
	mailer         mail.Sender
	resetTransport ResetTransport
	logger         *slog.Logger
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(
	users *identity.UserManager,
	accounts *account.Service,
	tokens TokenIssuer,
	mailer mail.Sender,
	resetTransport ResetTransport,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:          users,
		accounts:       accounts,
		tokens:         tokens,
		mailer:         mailer,
		resetTransport: resetTransport,
		logger:         logger,
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Identifier string // Username, or email when it contains "@"
	Password   string
}

/*
Login verifies credentials and issues an access token.

Description: An unknown identifier and a wrong password fail with the same
message. A wrong password also increments the failed-access counter.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *TokenPayload: Signed token carrying the current roles
  - error: Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*TokenPayload, error) {

	// Resolve the identifier
	user, err := service.users.FindByIdentifier(context, input.Identifier)
	if err != nil {
		if apperr.IsNotFound(err) {
			service.logger.InfoContext(context, "login_failed", slog.String("reason", "unknown_identifier"))
			return nil, apperr.Unauthorized(msgAuthenticationFailed)
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	// Verify the password and count the failure
	if !service.users.CheckPassword(user, input.Password) {
		if _, err := service.users.AccessFailed(context, user); err != nil {
			return nil, fmt.Errorf("auth_service_access_failed_failed: %w", err)
		}
		service.logger.InfoContext(context, "login_failed",
			slog.String("reason", "wrong_password"),
			slog.String("user_id", user.ID),
			slog.Int("access_failed_count", user.AccessFailedCount),
		)
		return nil, apperr.Unauthorized(msgAuthenticationFailed)
	}

	// Record the sign-in
	result, err := service.accounts.UpdateLastLogin(context, user)
	if err != nil {
		return nil, fmt.Errorf("auth_service_login_failed: %w", err)
	}
	if !result.Succeeded {
		return nil, apperr.Unauthorized(msgAuthenticationFailed)
	}

	payload, err := service.issue(context, user)
	if err != nil {
		return nil, err
	}

	service.logger.InfoContext(context, "user_logged_in", slog.String("user_id", user.ID))
	return payload, nil
}

/*
RefreshToken issues a new access token for an already authenticated user.

Description: Roles are read again so the new token reflects the current
assignments. Earlier tokens stay valid until they expire.

Parameters:
  - context: context.Context
  - userID: string (Subject of a verified token)

Returns:
  - *TokenPayload: Fresh token with a new jti and expiry
  - error: Unauthorized when the account is gone, or internal failures
*/
func (service *Service) RefreshToken(context context.Context, userID string) (*TokenPayload, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.Unauthorized(msgAuthenticationFailed)
		}
		return nil, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}
	return service.issue(context, user)
}

// UserInfo returns the authenticated account with its roles.
func (service *Service) UserInfo(context context.Context, userID string) (*identity.UserWithRoles, error) {
	info, err := service.accounts.GetByIDWithRoles(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound(msgUserNotFound)
		}
		return nil, err
	}
	return info, nil
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

/*
Register creates an account holding only the default User role.

Description: Account creation and role assignment share one transaction.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - identity.Result: Failed on duplicates or a weak password
  - error: Storage failures
*/
func (service *Service) Register(context context.Context, input RegisterInput) (identity.Result, error) {
	user, result, err := service.accounts.Add(context, account.CreateInput{
		Username: input.Username,
		Email:    input.Email,
		Password: input.Password,
		Roles:    []string{sec.RoleUser},
	})
	if err != nil {
		return identity.Result{}, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	if result.Succeeded {
		service.logger.InfoContext(context, "user_registered", slog.String("user_id", user.ID))
	}
	return result, nil
}

// # Profile Management

// UpdateProfileInput holds the new username and email.
type UpdateProfileInput struct {
	Username string
	Email    string
}

/*
UpdateProfile changes the username and email of the authenticated user.

Description: Role assignments are never touched here.

Returns:
  - identity.Result: Failed on duplicates, invalid values or a missing account
  - error: Storage failures
*/
func (service *Service) UpdateProfile(context context.Context, userID string, input UpdateProfileInput) (identity.Result, error) {
	result, err := service.accounts.Update(context, userID, account.UpdateInput{
		Username: input.Username,
		Email:    input.Email,
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			return identity.Failed(identity.ErrUserNotFound()), nil
		}
		return identity.Result{}, err
	}
	return result, nil
}

// ChangePasswordInput holds the current and the replacement password.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

/*
ChangePassword replaces the password of the authenticated user.

Parameters:
  - context: context.Context
  - userID: string
  - input: ChangePasswordInput

Returns:
  - identity.Result: Failed on a wrong current password, an empty or weak new one
  - error: apperr.NotFound for a missing account, or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID string, input ChangePasswordInput) (identity.Result, error) {
	user, err := service.users.FindByID(context, userID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return identity.Result{}, apperr.NotFound(msgUserNotFound)
		}
		return identity.Result{}, fmt.Errorf("auth_service_change_password_lookup_failed: %w", err)
	}

	result, err := service.accounts.ChangePassword(context, user, input.CurrentPassword, input.NewPassword)
	if err != nil {
		return identity.Result{}, err
	}

	if result.Succeeded {
		service.logger.InfoContext(context, "password_changed", slog.String("user_id", userID))
	}
	return result, nil
}

// # Password Recovery

/*
GeneratePasswordResetToken issues a reset token for the account owning email.

Returns:
  - string: The token, or "" when no account owns the email
  - error: Lookup or signing failures
*/
func (service *Service) GeneratePasswordResetToken(context context.Context, email string) (string, error) {
	_, token, err := service.resetTokenFor(context, email)
	return token, err
}

/*
ForgotPassword issues a reset token and delivers it with the configured transport.

Description: With [ResetViaEmail] an unknown address is indistinguishable from a
known one. With [ResetInResponse] an unknown address fails with NotFound.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *ResetDispatch: How the token was delivered
  - error: apperr.NotFound, mail or signing failures
*/
func (service *Service) ForgotPassword(context context.Context, email string) (*ResetDispatch, error) {
	user, token, err := service.resetTokenFor(context, email)
	if err != nil {
		return nil, err
	}

	if service.resetTransport == ResetInResponse {
		if token == "" {
			return nil, apperr.NotFound(msgUserNotFound)
		}
		service.logger.InfoContext(context, "password_reset_requested",
			slog.String("user_id", user.ID),
			slog.String("transport", string(ResetInResponse)),
		)
		return &ResetDispatch{Transport: ResetInResponse, Token: token}, nil
	}

	if token == "" {
		service.logger.InfoContext(context, "password_reset_unknown_email")
		return &ResetDispatch{Transport: ResetViaEmail}, nil
	}

	message := mail.Message{
		To:      user.Email,
		Subject: resetEmailSubject,
		Body:    fmt.Sprintf(resetEmailBody, user.Username, token),
	}
	if err := service.mailer.Send(context, message); err != nil {
		return nil, fmt.Errorf("auth_service_reset_email_failed: %w", err)
	}

	service.logger.InfoContext(context, "password_reset_requested",
		slog.String("user_id", user.ID),
		slog.String("transport", string(ResetViaEmail)),
	)
	return &ResetDispatch{Transport: ResetViaEmail}, nil
}

// ResetPasswordInput holds a reset token redemption.
type ResetPasswordInput struct {
	Email       string
	Token       string
	NewPassword string
}

/*
ResetPassword redeems a reset token and stores the new password.

Returns:
  - identity.Result: Failed with UserNotFound, InvalidToken or policy errors
  - error: Storage failures
*/
func (service *Service) ResetPassword(context context.Context, input ResetPasswordInput) (identity.Result, error) {
	user, err := service.users.FindByEmail(context, input.Email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return identity.Failed(identity.ErrUserNotFound()), nil
		}
		return identity.Result{}, fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	result, err := service.users.ResetPassword(context, user, input.Token, input.NewPassword)
	if err != nil {
		return identity.Result{}, fmt.Errorf("auth_service_reset_failed: %w", err)
	}

	if result.Succeeded {
		service.logger.InfoContext(context, "password_reset_completed", slog.String("user_id", user.ID))
	}
	return result, nil
}

// # Account Removal

// DeleteAccount removes the authenticated user's roles, then the account.
func (service *Service) DeleteAccount(context context.Context, userID string) (identity.Result, error) {
	return service.accounts.Delete(context, userID)
}

// # Internal Helpers

func (service *Service) issue(context context.Context, user *identity.User) (*TokenPayload, error) {
	roles, err := service.users.GetRoles(context, user)
	if err != nil {
		return nil, fmt.Errorf("auth_service_roles_failed: %w", err)
	}

	token, err := service.tokens.Generate(user.ID, roles)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}
	return &TokenPayload{Token: token.Value, ExpiresAt: token.ExpiresAt}, nil
}

func (service *Service) resetTokenFor(context context.Context, email string) (*identity.User, string, error) {
	user, err := service.users.FindByEmail(context, email)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("auth_service_reset_lookup_failed: %w", err)
	}

	token, err := service.users.GeneratePasswordResetToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
