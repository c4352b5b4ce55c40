// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package permission implements the workspace access-control model.
//
// Each workspace carries an [ACL]: an owner, explicit per-user grants,
// and a "globally readable" flag. Permissions are totally ordered:
//
//	None < Read < Write < Admin < Owner
//
// so every check is a range check on the caller's effective level.
// The owner is implicitly Owner and never appears in the grant map;
// the global flag acts as a Read grant to every user, anonymous
// callers included.
//
// # Checks
//
// [Evaluate] decides a single (user, workspace, required level,
// action) request and reports why it was denied. [Check] wraps it and
// returns the caller-facing fault.Authorization error. Messages name
// the caller ("User alice may not write to workspace genomes") or say
// "Anonymous users may not ..." when there is no caller.
//
// A locked workspace rejects every mutating request with the same
// locked-workspace message regardless of the caller's level. Reads of
// a locked workspace proceed at the caller's granted level.
//
// # Grants
//
// [ValidateGrant] and [ValidateGlobalGrant] enforce who may change an
// ACL: only Admin or Owner may grant; Owner can never be granted;
// an Admin may not touch the owner's entry; a user without Admin may
// only lower their own explicit grant. A system administrator acting
// as admin bypasses the level checks. The set of system administrators
// is an [Admins] value owned by the service that uses it.
package permission
