// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"fmt"
	"log/slog"
)

/*
SeedRoles creates every missing role. It runs on each boot and is idempotent.

Parameters:
  - context: context.Context
  - manager: *RoleManager
  - names: []string (usually sec.DefaultRoles)
  - logger: *slog.Logger

Returns:
  - error: Lookup or creation faults, or a rejected role name
*/
func SeedRoles(context context.Context, manager *RoleManager, names []string, logger *slog.Logger) error {
	for _, name := range names {
		exists, err := manager.RoleExists(context, name)
		if err != nil {
			return fmt.Errorf("identity_seed_role_lookup_failed: %w", err)
		}
		if exists {
			continue
		}

		result, err := manager.Create(context, name)
		if err != nil {
			return fmt.Errorf("identity_seed_role_create_failed: %w", err)
		}

		// A concurrent replica may have created it first.
		if !result.Succeeded && result.Errors[0].Code != CodeDuplicateRoleName {
			return fmt.Errorf("identity_seed_role_rejected: %s", result.Errors[0].Description)
		}

		logger.InfoContext(context, "role_seeded", slog.String("role", name))
	}
	return nil
}
