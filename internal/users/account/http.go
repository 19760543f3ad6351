// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/platform/requestutil"
	"github.com/taibuivan/piggybank/internal/platform/respond"
	"github.com/taibuivan/piggybank/internal/platform/validate"
)

// # Response Messages

const (
	msgUserNotFound       = "User not found."
	msgUserCreateSuccess  = "User created with success."
	msgUserCreateFailure  = "User create failure."
	msgUserUpdateSuccess  = "User updated with success."
	msgUserUpdateFailure  = "User update failure."
	msgUserDeleteSuccess  = "User deleted with success."
	msgUserDeleteFailure  = "User delete failure."
	minPasswordLength     = 6
	msgRolesFieldRequired = "Roles are required"
)

// Handler implements the HTTP layer for user administration.
//
// # Security
//
// Every route requires the Admin policy, which the router applies when
// mounting [Handler.Routes].
type Handler struct {
	accountService *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{accountService: service}
}

// Routes returns a [chi.Router] configured with the admin user endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.list)
	router.Get("/{id}", handler.getByID)
	router.Post("/", handler.create)
	router.Put("/{id}", handler.update)
	router.Delete("/{id}", handler.delete)

	return router
}

// # Read Endpoints

/*
GET /api/admin/appuser.

Description: Lists every account with its roles.

Response:
  - 200: []UserWithRoles
  - 403: ErrForbidden: Admin policy not satisfied
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	users, err := handler.accountService.GetAllWithRoles(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, users)
}

/*
GET /api/admin/appuser/{id}.

Response:
  - 200: UserWithRoles
  - 404: ErrNotFound: User not found
*/
func (handler *Handler) getByID(writer http.ResponseWriter, request *http.Request) {
	user, err := handler.accountService.GetByIDWithRoles(request.Context(), requestutil.Param(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// # Write Endpoints

// createRequest defines the expected JSON payload for admin user creation.
type createRequest struct {
	Email           string   `json:"email"`
	UserName        string   `json:"user_name"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirm_password"`
	Roles           []string `json:"roles"`
}

/*
POST /api/admin/appuser.

Request:
  - body: createRequest

Response:
  - 200: Message: User created with success.
  - 400: Validation: Invalid input or identity rule violations
*/
func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var input createRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("user_name", input.UserName).
		Required("email", input.Email).
		Email("email", input.Email).
		MinLen("password", input.Password, minPasswordLength).
		Matches("confirm_password", input.Password, input.ConfirmPassword).
		Custom("roles", input.Roles == nil, msgRolesFieldRequired).
		Each("roles", input.Roles, func(v *validate.Validator, field, value string) { v.Required(field, value) })

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, result, err := handler.accountService.Add(request.Context(), CreateInput{
		Username: input.UserName,
		Email:    input.Email,
		Password: input.Password,
		Roles:    input.Roles,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if !result.Succeeded {
		respond.Error(writer, request, result.Err(msgUserCreateFailure))
		return
	}

	respond.Message(writer, http.StatusOK, msgUserCreateSuccess)
}

// updateRequest defines the expected JSON payload for admin user updates.
type updateRequest struct {
	UserName string   `json:"user_name"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
}

/*
PUT /api/admin/appuser/{id}.

Description: Replaces username and email. A non-empty roles list replaces the
current role assignments.

Response:
  - 200: Message: User updated with success.
  - 400: Validation: Invalid input or identity rule violations
  - 404: ErrNotFound: User not found
*/
func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	var input updateRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("user_name", input.UserName).
		Required("email", input.Email).
		Email("email", input.Email)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.accountService.Update(request.Context(), requestutil.Param(request, "id"), UpdateInput{
		Username: input.UserName,
		Email:    input.Email,
		Roles:    input.Roles,
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			err = apperr.NotFound(msgUserNotFound)
		}
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
DELETE /api/admin/appuser/{id}.

Response:
  - 200: Message: User deleted with success.
  - 400: Validation: User delete failure.
*/
func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	result, err := handler.accountService.Delete(request.Context(), requestutil.Param(request, "id"))
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
