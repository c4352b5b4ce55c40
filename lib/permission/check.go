// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"strconv"

	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Decision is the outcome of a permission check.
type Decision int

const (
	// Deny means the action is not permitted.
	Deny Decision = iota

	// Allow means the action is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// DenyReason describes why a check was denied.
type DenyReason int

const (
	// ReasonInsufficient means the caller's effective level is below
	// the required level.
	ReasonInsufficient DenyReason = iota

	// ReasonLocked means the action mutates a locked workspace.
	ReasonLocked
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonInsufficient:
		return "insufficient permission"
	case ReasonLocked:
		return "workspace locked"
	default:
		return "unknown"
	}
}

// Target is the resolved workspace a check is made against.
type Target struct {
	ID     int64
	Name   string
	Locked bool
}

// Label returns the name, or the decimal id when the name is empty.
func (t Target) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return strconv.FormatInt(t.ID, 10)
}

// Request is one permission check.
type Request struct {
	// User is the caller. The zero value is an anonymous caller.
	User ref.User

	Workspace Target
	ACL       ACL

	// Required is the minimum effective level.
	Required Permission

	// Action is the verb phrase used in denial messages, e.g. "read"
	// or "write to".
	Action string

	// Mutating marks actions that a lock blocks.
	Mutating bool
}

// Result describes the outcome of a check.
type Result struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason is only meaningful when Decision is Deny.
	Reason DenyReason

	// Effective is the caller's level on the workspace, regardless of
	// the decision.
	Effective Permission
}

// Evaluate decides req. The lock is consulted first: a mutating
// request on a locked workspace is denied whatever the caller holds.
func Evaluate(req Request) Result {
	effective := req.ACL.Effective(req.User)
	if req.Mutating && req.Workspace.Locked {
		return Result{Decision: Deny, Reason: ReasonLocked, Effective: effective}
	}
	if effective < req.Required {
		return Result{Decision: Deny, Reason: ReasonInsufficient, Effective: effective}
	}
	return Result{Decision: Allow, Effective: effective}
}

// Check evaluates req and returns the caller-facing error on denial.
func Check(req Request) error {
	result := Evaluate(req)
	if result.Decision == Allow {
		return nil
	}
	if result.Reason == ReasonLocked {
		return LockedError(req.Workspace)
	}
	return DeniedError(req.User, req.Action, req.Workspace.Label())
}

// LockedError is the error returned for any mutation of a locked
// workspace.
func LockedError(workspace Target) error {
	return fault.Authorizationf("The workspace with id %d, name %s, is locked and may not be modified",
		workspace.ID, workspace.Name)
}

// DeniedError formats an authorization failure for user performing
// action on the workspace labelled label.
func DeniedError(user ref.User, action, label string) error {
	if user.IsZero() {
		return fault.Authorizationf("Anonymous users may not %s workspace %s", action, label)
	}
	return fault.Authorizationf("User %s may not %s workspace %s", user, action, label)
}
