// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strconv"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// WorkspaceLocator is an unresolved reference to a workspace: either a
// name (plain, or compound "owner:name") or a numeric id. Exactly one
// of the two is set in a valid locator.
//
// WorkspaceLocator is an immutable, comparable value type. The zero
// value is not valid; use IsZero to check.
type WorkspaceLocator struct {
	id   int64
	name string
}

// WorkspaceByID returns a locator for the workspace with the given id.
func WorkspaceByID(id int64) (WorkspaceLocator, error) {
	if id < 1 {
		return WorkspaceLocator{}, fault.Inputf("Workspace id must be > 0")
	}
	return WorkspaceLocator{id: id}, nil
}

// WorkspaceByName returns a locator for the workspace with the given
// name. The name is checked syntactically, including the compound
// form; ownership of a compound prefix is only checked when creating
// or renaming (see ValidateWorkspaceName).
func WorkspaceByName(name string) (WorkspaceLocator, error) {
	if err := checkWorkspaceName(name); err != nil {
		return WorkspaceLocator{}, err
	}
	return WorkspaceLocator{name: name}, nil
}

// ParseWorkspaceLocator interprets s as an id when it is entirely
// digits, otherwise as a name.
func ParseWorkspaceLocator(s string) (WorkspaceLocator, error) {
	if isDigits(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return WorkspaceLocator{}, fault.Inputf("Workspace id %s is out of range", s)
		}
		return WorkspaceByID(id)
	}
	return WorkspaceByName(s)
}

// MustWorkspace is like ParseWorkspaceLocator but panics on error.
// Use in tests where the input is known-valid.
func MustWorkspace(s string) WorkspaceLocator {
	loc, err := ParseWorkspaceLocator(s)
	if err != nil {
		panic("ref.MustWorkspace(" + strconv.Quote(s) + "): " + err.Error())
	}
	return loc
}

// ID returns the numeric id and true for an id locator.
func (l WorkspaceLocator) ID() (int64, bool) { return l.id, l.id > 0 }

// Name returns the name and true for a name locator.
func (l WorkspaceLocator) Name() (string, bool) { return l.name, l.name != "" }

// IsZero reports whether the locator is the zero value.
func (l WorkspaceLocator) IsZero() bool { return l.id == 0 && l.name == "" }

// String returns the name, or the decimal id.
func (l WorkspaceLocator) String() string {
	if l.name != "" {
		return l.name
	}
	return strconv.FormatInt(l.id, 10)
}

// Describe returns the locator in the "id N" / "name X" form used in
// not-found messages.
func (l WorkspaceLocator) Describe() string {
	if l.name != "" {
		return "name " + l.name
	}
	return "id " + strconv.FormatInt(l.id, 10)
}

// MarshalText implements encoding.TextMarshaler.
func (l WorkspaceLocator) MarshalText() ([]byte, error) {
	if l.IsZero() {
		return []byte{}, nil
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *WorkspaceLocator) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*l = WorkspaceLocator{}
		return nil
	}
	parsed, err := ParseWorkspaceLocator(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ValidateWorkspaceName checks a name for a workspace being created or
// renamed by user. Beyond the syntax rules, a compound name's owner
// segment must equal the acting user's handle unless the call is
// privileged (a system administrator acting as admin).
func ValidateWorkspaceName(name string, user User, privileged bool) error {
	if err := checkWorkspaceName(name); err != nil {
		return err
	}
	owner, _, compound := strings.Cut(name, compoundSeparator)
	if !compound || privileged {
		return nil
	}
	if user.IsZero() || owner != user.String() {
		return fault.Inputf("Workspace name %s must only contain the user name %s prior to the %s delimiter",
			name, user.String(), compoundSeparator)
	}
	return nil
}

// SplitWorkspaceName splits a compound workspace name into owner and
// local name. For a plain name, owner is empty.
func SplitWorkspaceName(name string) (owner, local string) {
	owner, local, compound := strings.Cut(name, compoundSeparator)
	if !compound {
		return "", name
	}
	return owner, local
}

// checkWorkspaceName applies the syntax rules: name rules on the whole
// name with at most one compound separator, and non-empty sides when
// the separator is present.
func checkWorkspaceName(name string) error {
	switch strings.Count(name, compoundSeparator) {
	case 0:
		return validateName(name, "Workspace name")
	case 1:
		owner, local, _ := strings.Cut(name, compoundSeparator)
		if owner == "" || local == "" {
			return fault.Inputf("Workspace name %s must have a non-empty user name and workspace name on either side of the %s delimiter",
				name, compoundSeparator)
		}
		if len(name) > MaxNameLength {
			return fault.Inputf("Workspace name exceeds the maximum length of %d", MaxNameLength)
		}
		if c, found := firstIllegal(owner+local, &nameChars); found {
			return fault.Inputf("Illegal character in workspace name %s: %c", name, c)
		}
		return nil
	default:
		return fault.Inputf("Workspace name %s may only contain one %s delimiter", name, compoundSeparator)
	}
}
