// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strconv"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// ObjectLocator is an unresolved reference to an object within some
// workspace: a name or a numeric id, optionally pinned to a version.
// An unpinned locator means the latest version.
//
// ObjectLocator is an immutable, comparable value type.
type ObjectLocator struct {
	id      int64
	name    string
	version int
}

// ObjectByID returns a locator for the object with the given id.
func ObjectByID(id int64) (ObjectLocator, error) {
	if id < 1 {
		return ObjectLocator{}, fault.Inputf("Object id must be > 0")
	}
	return ObjectLocator{id: id}, nil
}

// ObjectByName returns a locator for the object with the given name.
func ObjectByName(name string) (ObjectLocator, error) {
	if err := ValidateObjectName(name); err != nil {
		return ObjectLocator{}, err
	}
	return ObjectLocator{name: name}, nil
}

// ParseObjectLocator interprets s as an id when it is entirely digits,
// otherwise as a name.
func ParseObjectLocator(s string) (ObjectLocator, error) {
	if isDigits(s) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ObjectLocator{}, fault.Inputf("Object id %s is out of range", s)
		}
		return ObjectByID(id)
	}
	return ObjectByName(s)
}

// ValidateObjectName checks the object name rules.
func ValidateObjectName(name string) error {
	return validateName(name, "Object name")
}

// WithVersion returns a copy of the locator pinned to version.
func (l ObjectLocator) WithVersion(version int) (ObjectLocator, error) {
	if version < 1 {
		return ObjectLocator{}, fault.Inputf("Object version must be > 0")
	}
	l.version = version
	return l, nil
}

// Latest returns a copy of the locator with any version pin removed.
func (l ObjectLocator) Latest() ObjectLocator {
	l.version = 0
	return l
}

// ID returns the numeric id and true for an id locator.
func (l ObjectLocator) ID() (int64, bool) { return l.id, l.id > 0 }

// Name returns the name and true for a name locator.
func (l ObjectLocator) Name() (string, bool) { return l.name, l.name != "" }

// Version returns the pinned version and true, or 0 and false for the
// latest version.
func (l ObjectLocator) Version() (int, bool) { return l.version, l.version > 0 }

// IsZero reports whether the locator is the zero value.
func (l ObjectLocator) IsZero() bool { return l.id == 0 && l.name == "" }

// String returns the name or decimal id, without the version.
func (l ObjectLocator) String() string {
	if l.name != "" {
		return l.name
	}
	return strconv.FormatInt(l.id, 10)
}

// Describe returns the "id N" / "name X" form used in messages.
func (l ObjectLocator) Describe() string {
	if l.name != "" {
		return "name " + l.name
	}
	return "id " + strconv.FormatInt(l.id, 10)
}

// ObjectIdentifier is an unresolved reference to an object: a
// workspace locator plus an object locator. It is what callers pass
// to get, copy, revert and flag operations, and what a reference
// string in a document parses into.
type ObjectIdentifier struct {
	Workspace WorkspaceLocator
	Object    ObjectLocator
}

// NewObjectIdentifier pairs a workspace and object locator.
func NewObjectIdentifier(workspace WorkspaceLocator, object ObjectLocator) (ObjectIdentifier, error) {
	if workspace.IsZero() {
		return ObjectIdentifier{}, fault.Inputf("Object identifier requires a workspace")
	}
	if object.IsZero() {
		return ObjectIdentifier{}, fault.Inputf("Object identifier requires an object name or id")
	}
	return ObjectIdentifier{Workspace: workspace, Object: object}, nil
}

// String returns the reference string form: "ws/obj" or "ws/obj/ver".
func (o ObjectIdentifier) String() string {
	s := o.Workspace.String() + referenceSeparator + o.Object.String()
	if version, ok := o.Object.Version(); ok {
		s += referenceSeparator + strconv.Itoa(version)
	}
	return s
}

// MarshalText implements encoding.TextMarshaler using the reference
// string form.
func (o ObjectIdentifier) MarshalText() ([]byte, error) {
	if o.Workspace.IsZero() {
		return []byte{}, nil
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler via
// ParseReference.
func (o *ObjectIdentifier) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*o = ObjectIdentifier{}
		return nil
	}
	parsed, err := ParseReference(string(data))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
