// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strconv"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// referenceSeparator separates the workspace, object, and version
// segments of a reference string.
const referenceSeparator = "/"

// ParseReference parses a reference string of the form
//
//	workspace "/" object [ "/" version ]
//
// where workspace and object are each a name or a decimal id and
// version is a positive decimal integer. An absolute address such as
// "7/12/3" parses to an all-id identifier, which is why resolving an
// already-rewritten reference is a no-op.
func ParseReference(s string) (ObjectIdentifier, error) {
	if s == "" {
		return ObjectIdentifier{}, fault.Inputf("Object reference cannot be null or the empty string")
	}
	segments := strings.Split(s, referenceSeparator)
	separators := len(segments) - 1
	if separators < 1 || separators > 2 {
		return ObjectIdentifier{}, fault.Inputf("Illegal number of separators '%s' (%d) in object reference %s",
			referenceSeparator, separators, s)
	}

	workspace, err := ParseWorkspaceLocator(segments[0])
	if err != nil {
		return ObjectIdentifier{}, err
	}
	object, err := ParseObjectLocator(segments[1])
	if err != nil {
		return ObjectIdentifier{}, err
	}
	if separators == 2 {
		version, err := strconv.Atoi(segments[2])
		if err != nil {
			return ObjectIdentifier{}, fault.Inputf("Unable to parse version portion of object reference %s to an integer: %s",
				s, segments[2])
		}
		object, err = object.WithVersion(version)
		if err != nil {
			return ObjectIdentifier{}, err
		}
	}
	return ObjectIdentifier{Workspace: workspace, Object: object}, nil
}

// MustParseReference is like ParseReference but panics on error. Use
// in tests where the input is known-valid.
func MustParseReference(s string) ObjectIdentifier {
	id, err := ParseReference(s)
	if err != nil {
		panic("ref.MustParseReference(" + strconv.Quote(s) + "): " + err.Error())
	}
	return id
}
