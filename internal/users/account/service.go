// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/piggybank/internal/platform/apperr"
	"github.com/taibuivan/piggybank/internal/users/identity"
)

// errAborted rolls a transaction back after a failed [identity.Result].
var errAborted = errors.New("account: aborted by failed result")

// # Service Layer

// Service orchestrates account administration on top of the identity managers.
//
// Every operation that touches more than one table runs in a single
// transaction, so a failed step leaves no partial state behind.
type Service struct {
	users  *identity.UserManager
	tx     Transactor
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a new [Service] with its dependencies.
func NewService(users *identity.UserManager, tx Transactor, logger *slog.Logger) *Service {
	return &Service{
		users:  users,
		tx:     tx,
		logger: logger,
		now:    time.Now,
	}
}

// # Reads

/*
GetAllWithRoles lists every account together with its role names.

Parameters:
  - context: context.Context

Returns:
  - []identity.UserWithRoles: Accounts in storage order
  - error: Retrieval failures
*/
func (service *Service) GetAllWithRoles(context context.Context) ([]identity.UserWithRoles, error) {
	users, err := service.users.List(context)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_failed: %w", err)
	}

	rolesByUser, err := service.users.GetRolesForUsers(context, users)
	if err != nil {
		return nil, fmt.Errorf("account_service_list_roles_failed: %w", err)
	}

	result := make([]identity.UserWithRoles, 0, len(users))
	for index := range users {
		result = append(result, *users[index].WithRoles(rolesByUser[users[index].ID]))
	}
	return result, nil
}

/*
GetByIDWithRoles returns one account together with its role names.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *identity.UserWithRoles: The account read model
  - error: apperr.NotFound or retrieval failures
*/
func (service *Service) GetByIDWithRoles(context context.Context, id string) (*identity.UserWithRoles, error) {
	user, err := service.users.FindByID(context, id)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_failed: %w", err)
	}

	roles, err := service.users.GetRoles(context, user)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_roles_failed: %w", err)
	}
	return user.WithRoles(roles), nil
}

// GetByID returns the account entity.
func (service *Service) GetByID(context context.Context, id string) (*identity.User, error) {
	user, err := service.users.FindByID(context, id)
	if err != nil {
		return nil, fmt.Errorf("account_service_get_failed: %w", err)
	}
	return user, nil
}

// # Writes

/*
Add creates an account and assigns its roles in one transaction.

Description: An unknown role fails the whole operation and the account is not
kept. Duplicate role names are collapsed.

Parameters:
  - ctx: context.Context
  - input: CreateInput

Returns:
  - *identity.User: The stored account when the result succeeded
  - identity.Result: Failed on identity rule violations
  - error: Storage failures
*/
func (service *Service) Add(ctx context.Context, input CreateInput) (*identity.User, identity.Result, error) {
	user := &identity.User{Username: input.Username, Email: input.Email}

	result, err := service.inTx(ctx, func(txCtx context.Context) (identity.Result, error) {
		result, err := service.users.Create(txCtx, user, input.Password)
		if err != nil || !result.Succeeded {
			return result, err
		}
		return service.users.AddToRoles(txCtx, user, input.Roles)
	})
	if err != nil {
		return nil, identity.Result{}, fmt.Errorf("account_service_add_failed: %w", err)
	}
	if !result.Succeeded {
		return nil, result, nil
	}

	service.logger.InfoContext(ctx, "user_account_created",
		slog.String("user_id", user.ID),
		slog.Any("roles", input.Roles),
	)
	return user, result, nil
}

/*
Update applies profile changes and, when roles are given, replaces them.

Description: Touches updated-at. Role replacement removes every current
assignment then adds the requested ones, inside the same transaction as the
profile write.

Parameters:
  - ctx: context.Context
  - id: string
  - input: UpdateInput

Returns:
  - identity.Result: Failed on identity rule violations or unknown roles
  - error: apperr.NotFound or storage failures
*/
func (service *Service) Update(ctx context.Context, id string, input UpdateInput) (identity.Result, error) {
	user, err := service.users.FindByID(ctx, id)
	if err != nil {
		return identity.Result{}, fmt.Errorf("account_service_update_lookup_failed: %w", err)
	}

	user.Username = input.Username
	user.Email = input.Email

	result, err := service.inTx(ctx, func(txCtx context.Context) (identity.Result, error) {
		result, err := service.users.Update(txCtx, user)
		if err != nil || !result.Succeeded || len(input.Roles) == 0 {
			return result, err
		}

		current, err := service.users.GetRoles(txCtx, user)
		if err != nil {
			return identity.Result{}, err
		}

		result, err = service.users.RemoveFromRoles(txCtx, user, current)
		if err != nil || !result.Succeeded {
			return result, err
		}
		return service.users.AddToRoles(txCtx, user, input.Roles)
	})
	if err != nil {
		return identity.Result{}, fmt.Errorf("account_service_update_failed: %w", err)
	}

	if result.Succeeded {
		service.logger.InfoContext(ctx, "user_account_updated", slog.String("user_id", id))
	}
	return result, nil
}

// UpdateLastLogin records a successful sign-in now.
func (service *Service) UpdateLastLogin(context context.Context, user *identity.User) (identity.Result, error) {
	result, err := service.users.UpdateLastLogin(context, user, service.now())
	if err != nil {
		return identity.Result{}, fmt.Errorf("account_service_last_login_failed: %w", err)
	}
	return result, nil
}

/*
ChangePassword replaces the password of user after checking the current one.

Parameters:
  - context: context.Context
  - user: *identity.User
  - currentPassword: string
  - newPassword: string (must not be empty)

Returns:
  - identity.Result: Failed on mismatch, empty or weak password
  - error: Storage failures
*/
func (service *Service) ChangePassword(context context.Context, user *identity.User, currentPassword, newPassword string) (identity.Result, error) {
	if newPassword == "" {
		return identity.Failed(identity.ErrNoNewPassword()), nil
	}

	result, err := service.users.ChangePassword(context, user, currentPassword, newPassword)
	if err != nil {
		return identity.Result{}, fmt.Errorf("account_service_change_password_failed: %w", err)
	}
	return result, nil
}

/*
Delete removes all role assignments of the account, then the account itself.

Description: Runs in one transaction. When role removal fails the account row
is never touched.

Parameters:
  - ctx: context.Context
  - id: string

Returns:
  - identity.Result: Failed with UserNotFound for a missing account
  - error: Storage failures
*/
func (service *Service) Delete(ctx context.Context, id string) (identity.Result, error) {
	user, err := service.users.FindByID(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			return identity.Failed(identity.ErrUserNotFound()), nil
		}
		return identity.Result{}, fmt.Errorf("account_service_delete_lookup_failed: %w", err)
	}

	result, err := service.inTx(ctx, func(txCtx context.Context) (identity.Result, error) {
		roles, err := service.users.GetRoles(txCtx, user)
		if err != nil {
			return identity.Result{}, err
		}

		result, err := service.users.RemoveFromRoles(txCtx, user, roles)
		if err != nil || !result.Succeeded {
			return result, err
		}
		return service.users.Delete(txCtx, user)
	})
	if err != nil {
		return identity.Result{}, fmt.Errorf("account_service_delete_failed: %w", err)
	}

	if result.Succeeded {
		service.logger.WarnContext(ctx, "user_account_deleted", slog.String("user_id", id))
	}
	return result, nil
}

// # Seeding

/*
SeedDefaultUsers creates the development accounts that do not exist yet.

Parameters:
  - context: context.Context
  - users: []DefaultUser

Returns:
  - error: Lookup or creation failures, or a rejected account
*/
func (service *Service) SeedDefaultUsers(context context.Context, users []DefaultUser) error {
	for _, seed := range users {
		_, err := service.users.FindByEmail(context, seed.Email)
		if err == nil {
			continue
		}
		if !apperr.IsNotFound(err) {
			return fmt.Errorf("account_seed_lookup_failed: %w", err)
		}

		_, result, err := service.Add(context, CreateInput{
			Username: seed.Username,
			Email:    seed.Email,
			Password: seed.Password,
			Roles:    []string{seed.Role},
		})
		if err != nil {
			return fmt.Errorf("account_seed_failed: %w", err)
		}
		if !result.Succeeded {
			return fmt.Errorf("account_seed_rejected: %s: %s", seed.Username, result.Errors[0].Description)
		}

		service.logger.InfoContext(context, "default_user_seeded",
			slog.String("user_name", seed.Username),
			slog.String("role", seed.Role),
		)
	}
	return nil
}

// # Internal Helpers

// inTx runs step in a transaction and rolls back when its result failed.
func (service *Service) inTx(ctx context.Context, step func(txCtx context.Context) (identity.Result, error)) (identity.Result, error) {
	var result identity.Result

	err := service.tx.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		result, err = step(txCtx)
		if err != nil {
			return err
		}
		if !result.Succeeded {
			return errAborted
		}
		return nil
	})
	if errors.Is(err, errAborted) {
		return result, nil
	}
	return result, err
}
