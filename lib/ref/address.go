// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// Address is the absolute location of one object version: workspace
// id, object id, version. Stored references are always Addresses.
//
// Address is comparable and usable as a map key. The zero value is
// not a valid address.
type Address struct {
	Workspace int64
	Object    int64
	Version   int
}

// ParseAddress parses the canonical "w/o/v" form. Unlike
// ParseReference it accepts only ids and requires the version.
func ParseAddress(s string) (Address, error) {
	segments := strings.Split(s, referenceSeparator)
	if len(segments) != 3 {
		return Address{}, fault.Inputf("Address %s must have the form workspace_id/object_id/version", s)
	}
	var values [3]int64
	for i, segment := range segments {
		value, err := strconv.ParseInt(segment, 10, 64)
		if err != nil || value < 1 {
			return Address{}, fault.Inputf("Address %s has an invalid segment: %s", s, segment)
		}
		values[i] = value
	}
	return Address{Workspace: values[0], Object: values[1], Version: int(values[2])}, nil
}

// String returns the canonical "w/o/v" form.
func (a Address) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Workspace, a.Object, a.Version)
}

// IsZero reports whether a is the zero value.
func (a Address) IsZero() bool { return a == Address{} }

// Identifier returns the all-id ObjectIdentifier for a, pinned to its
// version.
func (a Address) Identifier() ObjectIdentifier {
	return ObjectIdentifier{
		Workspace: WorkspaceLocator{id: a.Workspace},
		Object:    ObjectLocator{id: a.Object, version: a.Version},
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
