// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// GrantRequest describes a change to one user's explicit grant.
type GrantRequest struct {
	Actor     ref.User
	Workspace Target
	ACL       ACL
	Grantee   ref.User
	Level     Permission

	// AsAdmin is set when a system administrator acts in that role.
	AsAdmin bool
}

// ValidateGrant reports whether req may be applied. It does not
// modify the ACL.
func ValidateGrant(req GrantRequest) error {
	if req.Workspace.Locked {
		return LockedError(req.Workspace)
	}
	if req.Level == Owner {
		return fault.Inputf("Cannot grant owner permission on workspace %s", req.Workspace.Label())
	}
	if req.Level < None || req.Level > Owner {
		return fault.Inputf("Invalid permission level %d", int(req.Level))
	}
	if req.Grantee.IsZero() {
		return fault.Inputf("Permissions must be granted to a named user")
	}
	if req.Grantee.IsAllUsers() {
		return fault.Inputf("Permissions for all users must be set with the global permission")
	}
	if req.Grantee == req.ACL.Owner {
		if req.AsAdmin || req.Actor == req.ACL.Owner {
			return fault.Inputf("Cannot change the permissions of the owner of workspace %s", req.Workspace.Label())
		}
		return DeniedError(req.Actor, "alter the owner's permissions on", req.Workspace.Label())
	}
	if req.AsAdmin {
		return nil
	}
	if req.ACL.Effective(req.Actor) >= Admin {
		return nil
	}
	if !req.Actor.IsZero() && req.Grantee == req.Actor {
		explicit := req.ACL.Explicit(req.Actor)
		if explicit > None && req.Level <= explicit {
			return nil
		}
		return fault.Authorizationf("User %s may only reduce their own permission on workspace %s",
			req.Actor, req.Workspace.Label())
	}
	return DeniedError(req.Actor, "set permissions on", req.Workspace.Label())
}

// ValidateGlobalGrant reports whether the globally readable flag may
// be set to level (None or Read).
func ValidateGlobalGrant(actor ref.User, workspace Target, acl ACL, level Permission, asAdmin bool) error {
	if workspace.Locked {
		return LockedError(workspace)
	}
	if level > Read {
		return fault.Inputf("Global permissions cannot be greater than read")
	}
	if level < None {
		return fault.Inputf("Invalid permission level %d", int(level))
	}
	if asAdmin || acl.Effective(actor) >= Admin {
		return nil
	}
	return DeniedError(actor, "set global permission on", workspace.Label())
}

// Apply returns a copy of acl with req's grant applied. A None level
// removes the explicit entry. Callers validate first.
func Apply(acl ACL, grantee ref.User, level Permission) ACL {
	next := acl.Clone()
	if level == None {
		delete(next.Grants, grantee)
	} else {
		next.Grants[grantee] = level
	}
	return next
}
