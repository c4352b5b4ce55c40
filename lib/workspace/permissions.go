// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/resolve"
)

// SetPermissions sets the explicit level of each user. Every grant is
// validated before any is applied, so a rejected grant changes
// nothing.
func (s *Service) SetPermissions(ctx context.Context, caller Caller, locator ref.WorkspaceLocator, level permission.Permission, users []ref.User) error {
	if len(users) == 0 {
		return fault.Inputf("Must provide at least one user")
	}
	if err := s.checkAdmin(caller); err != nil {
		return err
	}
	workspace, record, err := s.resolver.Workspace(ctx, locator, resolve.Options{})
	if err != nil {
		return err
	}
	for _, user := range users {
		err := permission.ValidateGrant(permission.GrantRequest{
			Actor:     caller.User,
			Workspace: target(record),
			ACL:       record.ACL,
			Grantee:   user,
			Level:     level,
			AsAdmin:   caller.AsAdmin,
		})
		if err != nil {
			return err
		}
	}
	if err := s.backend.SetGrants(ctx, workspace.ID(), users, level, s.now()); err != nil {
		return internal(err, "granting %s on workspace %s", level, workspace.Label())
	}
	s.logger.Info("permissions set",
		"workspace", workspace.ID(),
		"level", level.String(),
		"users", len(users),
		"actor", caller.User.String(),
	)
	return nil
}

// SetGlobalPermission sets whether every caller, anonymous included,
// can read the workspace. level is None or Read.
func (s *Service) SetGlobalPermission(ctx context.Context, caller Caller, locator ref.WorkspaceLocator, level permission.Permission) error {
	if err := s.checkAdmin(caller); err != nil {
		return err
	}
	workspace, record, err := s.resolver.Workspace(ctx, locator, resolve.Options{})
	if err != nil {
		return err
	}
	if err := permission.ValidateGlobalGrant(caller.User, target(record), record.ACL, level, caller.AsAdmin); err != nil {
		return err
	}
	global := level == permission.Read
	_, err = s.update(ctx, workspace, backend.WorkspaceUpdate{GlobalRead: &global})
	return err
}

// GetPermissions returns the workspace's grants as the caller may see
// them. Callers with write or higher (and administrators) see every
// grant. Others see only their own level and the global grant.
func (s *Service) GetPermissions(ctx context.Context, caller Caller, locator ref.WorkspaceLocator) (map[ref.User]permission.Permission, error) {
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	_, record, err := s.resolver.Workspace(ctx, locator, resolve.Options{})
	if err != nil {
		return nil, err
	}
	effective := record.ACL.Effective(caller.User)
	if caller.AsAdmin || effective >= permission.Write {
		return record.ACL.Listing(), nil
	}
	visible := map[ref.User]permission.Permission{}
	if !caller.User.IsZero() && effective > permission.None {
		visible[caller.User] = effective
	}
	if record.ACL.GlobalRead {
		visible[ref.AllUsers] = permission.Read
	}
	return visible, nil
}
