// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/piggybank/internal/platform/middleware"
	"github.com/taibuivan/piggybank/internal/platform/requestutil"
	"github.com/taibuivan/piggybank/internal/platform/respond"
	"github.com/taibuivan/piggybank/internal/platform/sec"
	"github.com/taibuivan/piggybank/internal/platform/validate"
)

// # Definitions & Constructors

// JSON field names reported by boundary validation.
const (
	FieldUserNameOrEmail    = "user_name_or_email"
	FieldUserName           = "user_name"
	FieldEmail              = "email"
	FieldPassword           = "password"
	FieldConfirmPassword    = "confirm_password"
	FieldCurrentPassword    = "current_password"
	FieldNewPassword        = "new_password"
	FieldConfirmNewPassword = "confirm_new_password"
	FieldToken              = "token"
)

// Handler implements the /api/auth endpoints.
//
// # Scope
//
// Public routes cover login, registration and password recovery. Every other
// route requires the User policy, which also admits administrators.
type Handler struct {
	authService *Service
	throttler   middleware.Throttler
}

// NewHandler constructs a new [Handler]. A nil throttler disables endpoint throttling.
func NewHandler(service *Service, throttler middleware.Throttler) *Handler {
	return &Handler{authService: service, throttler: throttler}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
//
// # Endpoints
//   - POST /login, /register, /forgot-password, /reset-password : Public.
//   - GET /refresh-token, /user-info; PUT /update; PATCH /change-password;
//     POST /logout; DELETE /delete : User policy.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.With(handler.throttle(routeLogin)).Post("/login", handler.login)
	router.Post("/register", handler.register)
	router.With(handler.throttle(routeForgotPassword)).Post("/forgot-password", handler.forgotPassword)
	router.With(handler.throttle(routeResetPassword)).Post("/reset-password", handler.resetPassword)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequirePolicy(sec.PolicyUser))
		r.Get("/refresh-token", handler.refreshToken)
		r.Get("/user-info", handler.userInfo)
		r.Put("/update", handler.update)
		r.Patch("/change-password", handler.changePassword)
		r.Post("/logout", handler.logout)
		r.Delete("/delete", handler.delete)
	})

	return router
}

func (handler *Handler) throttle(route string) func(http.Handler) http.Handler {
	if handler.throttler == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Throttle(handler.throttler, route)
}

// # Request Payloads

type loginRequest struct {
	UserNameOrEmail string `json:"user_name_or_email"`
	Password        string `json:"password"`
}

type registerRequest struct {
	Email           string `json:"email"`
	UserName        string `json:"user_name"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type updateRequest struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email              string `json:"email"`
	Token              string `json:"token"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

type resetTokenResponse struct {
	Token string `json:"token"`
}

// # Authentication Endpoints

/*
Login authenticates a user by username or email.

POST /api/auth/login

Request:
  - Body: loginRequest

Response:
  - 200: TokenPayload: Access token and expiry
  - 401: ErrUnauthorized: Authentication failed.
  - 429: ErrRateLimited: Too many attempts from this address
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUserNameOrEmail, input.UserNameOrEmail).
		Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload, err := handler.authService.Login(request.Context(), LoginInput{
		Identifier: input.UserNameOrEmail,
		Password:   input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, payload)
}

/*
Register creates an account with the default User role.

POST /api/auth/register

Response:
  - 200: Message: User created with success.
  - 400: Validation: Bad input, duplicates or a weak password
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldUserName, input.UserName).
		MinLen(FieldPassword, input.Password, minPasswordLength).
		Matches(FieldConfirmPassword, input.Password, input.ConfirmPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:    input.Email,
		Username: input.UserName,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !result.Succeeded {
		respond.Error(writer, request, result.Err(msgRegisterFailure))
		return
	}

	respond.Message(writer, http.StatusOK, msgUserCreateSuccess)
}

/*
RefreshToken issues a fresh access token for the caller.

GET /api/auth/refresh-token

Response:
  - 200: TokenPayload: New token with current roles
  - 401: ErrUnauthorized: Account no longer exists
*/
func (handler *Handler) refreshToken(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	payload, err := handler.authService.RefreshToken(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, payload)
}

/*
UserInfo returns the caller's account and roles.

GET /api/auth/user-info

Response:
  - 200: UserWithRoles
  - 404: ErrNotFound: User not found.
*/
func (handler *Handler) userInfo(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	info, err := handler.authService.UserInfo(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, info)
}

/*
Logout acknowledges a client-side sign-out. Tokens are stateless, so nothing
is revoked on the server.

POST /api/auth/logout
*/
func (handler *Handler) logout(writer http.ResponseWriter, _ *http.Request) {
	respond.Message(writer, http.StatusOK, msgLogoutSuccessful)
}

// # Profile Endpoints

/*
Update changes the caller's username and email.

PUT /api/auth/update

Response:
  - 200: Message: User updated with success.
  - 400: Validation: User update failure.
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldUserName, input.UserName).
		Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.UpdateProfile(request.Context(), userID, UpdateProfileInput{
		Username: input.UserName,
		Email:    input.Email,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !result.Succeeded {
		respond.Error(writer, request, result.Err(msgUserUpdateFailure))
		return
	}

	respond.Message(writer, http.StatusOK, msgUserUpdateSuccess)
}

/*
ChangePassword replaces the caller's password.

PATCH /api/auth/change-password

Response:
  - 200: Message: Changed password with success.
  - 400: Validation: Change password failure.
  - 404: ErrNotFound: User not found.
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input changePasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		MinLen(FieldNewPassword, input.NewPassword, minPasswordLength).
		Matches(FieldConfirmNewPassword, input.NewPassword, input.ConfirmNewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.ChangePassword(request.Context(), userID, ChangePasswordInput{
		CurrentPassword: input.CurrentPassword,
		NewPassword:     input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !result.Succeeded {
		respond.Error(writer, request, result.Err(msgChangePasswordFailed))
		return
	}

	respond.Message(writer, http.StatusOK, msgChangePasswordOK)
}

/*
Delete removes the caller's account.

DELETE /api/auth/delete

Response:
  - 200: Message: User deleted with success.
  - 400: Validation: User delete failure.
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.DeleteAccount(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !result.Succeeded {
		respond.Error(writer, request, result.Err(msgUserDeleteFailure))
		return
	}

	respond.Message(writer, http.StatusOK, msgUserDeleteSuccess)
}

// # Password Recovery Endpoints

/*
ForgotPassword starts password recovery for an email address.

POST /api/auth/forgot-password

Response:
  - 200: resetTokenResponse when tokens are returned in the response,
    otherwise a generic Message
  - 404: ErrNotFound: User not found. (response transport only)
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	dispatch, err := handler.authService.ForgotPassword(request.Context(), input.Email)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if dispatch.Transport == ResetInResponse {
		respond.OK(writer, resetTokenResponse{Token: dispatch.Token})
		return
	}

	respond.Message(writer, http.StatusOK, msgResetEmailSent)
}

/*
ResetPassword redeems a reset token.

POST /api/auth/reset-password

Response:
  - 200: Message: Reseted password with success.
  - 400: Validation: Reset password failure.
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldToken, input.Token).
		MinLen(FieldNewPassword, input.NewPassword, minPasswordLength).
		Matches(FieldConfirmNewPassword, input.NewPassword, input.ConfirmNewPassword)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.authService.ResetPassword(request.Context(), ResetPasswordInput{
		Email:       input.Email,
		Token:       input.Token,
		NewPassword: input.NewPassword,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !result.Succeeded {
		respond.Error(writer, request, result.Err(msgResetPasswordFailed))
		return
	}

	respond.Message(writer, http.StatusOK, msgResetPasswordOK)
}
