// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strconv"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// TypeID identifies a schema type: Module.Name with an optional major
// and minor version ("KBaseGenomes.Genome-3.1"). A TypeID with both
// versions is absolute and names exactly one registered type; one
// without is a pattern that matches several (see Matches).
//
// TypeID is an immutable, comparable value type.
type TypeID struct {
	module string
	name   string
	major  int
	minor  int
	// versions is 0 (none), 1 (major only) or 2 (major and minor).
	versions int
}

// NewTypeID returns the absolute type Module.Name-major.minor.
func NewTypeID(module, name string, major, minor int) (TypeID, error) {
	if err := validateTypePart(module, "module"); err != nil {
		return TypeID{}, err
	}
	if err := validateTypePart(name, "type"); err != nil {
		return TypeID{}, err
	}
	if major < 0 || minor < 0 {
		return TypeID{}, fault.Inputf("Type versions must be non-negative: %s.%s-%d.%d", module, name, major, minor)
	}
	return TypeID{module: module, name: name, major: major, minor: minor, versions: 2}, nil
}

// ParseTypeID parses "Module.Name", "Module.Name-M" or
// "Module.Name-M.m".
func ParseTypeID(s string) (TypeID, error) {
	if s == "" {
		return TypeID{}, fault.Inputf("Type id cannot be null or the empty string")
	}
	base, version, hasVersion := strings.Cut(s, "-")
	module, name, found := strings.Cut(base, ".")
	if !found {
		return TypeID{}, fault.Inputf("Type %s could not be split into a module and name", s)
	}
	if err := validateTypePart(module, "module"); err != nil {
		return TypeID{}, err
	}
	if err := validateTypePart(name, "type"); err != nil {
		return TypeID{}, err
	}
	id := TypeID{module: module, name: name}
	if !hasVersion {
		return id, nil
	}

	majorText, minorText, hasMinor := strings.Cut(version, ".")
	major, err := parseTypeVersion(majorText, s)
	if err != nil {
		return TypeID{}, err
	}
	id.major = major
	id.versions = 1
	if hasMinor {
		minor, err := parseTypeVersion(minorText, s)
		if err != nil {
			return TypeID{}, err
		}
		id.minor = minor
		id.versions = 2
	}
	return id, nil
}

// MustParseTypeID is like ParseTypeID but panics on error.
func MustParseTypeID(s string) TypeID {
	id, err := ParseTypeID(s)
	if err != nil {
		panic("ref.MustParseTypeID(" + strconv.Quote(s) + "): " + err.Error())
	}
	return id
}

// Module returns the module name.
func (t TypeID) Module() string { return t.module }

// Name returns the unqualified type name.
func (t TypeID) Name() string { return t.name }

// TypeString returns "Module.Name" without versions.
func (t TypeID) TypeString() string { return t.module + "." + t.name }

// Major returns the major version and whether it is set.
func (t TypeID) Major() (int, bool) { return t.major, t.versions >= 1 }

// Minor returns the minor version and whether it is set.
func (t TypeID) Minor() (int, bool) { return t.minor, t.versions == 2 }

// IsAbsolute reports whether both versions are set.
func (t TypeID) IsAbsolute() bool { return t.versions == 2 }

// IsZero reports whether t is the zero value.
func (t TypeID) IsZero() bool { return t.module == "" }

// String returns the canonical text form.
func (t TypeID) String() string {
	switch t.versions {
	case 0:
		return t.TypeString()
	case 1:
		return t.TypeString() + "-" + strconv.Itoa(t.major)
	default:
		return t.TypeString() + "-" + strconv.Itoa(t.major) + "." + strconv.Itoa(t.minor)
	}
}

// Matches reports whether candidate falls under the pattern t: same
// module and name, and the same major (and minor) version where t
// specifies them. Matching is case sensitive.
func (t TypeID) Matches(candidate TypeID) bool {
	if t.module != candidate.module || t.name != candidate.name {
		return false
	}
	if t.versions >= 1 {
		if major, ok := candidate.Major(); !ok || major != t.major {
			return false
		}
	}
	if t.versions == 2 {
		if minor, ok := candidate.Minor(); !ok || minor != t.minor {
			return false
		}
	}
	return true
}

// MarshalText implements encoding.TextMarshaler.
func (t TypeID) MarshalText() ([]byte, error) {
	if t.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TypeID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*t = TypeID{}
		return nil
	}
	parsed, err := ParseTypeID(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// validateTypePart checks a module or type name: a letter followed by
// letters, digits, or underscores.
func validateTypePart(part, label string) error {
	if part == "" {
		return fault.Inputf("The %s name cannot be empty", label)
	}
	for i := 0; i < len(part); i++ {
		c := part[i]
		letter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !letter {
			return fault.Inputf("The %s name %s must start with a letter", label, part)
		}
		if !letter && c != '_' && (c < '0' || c > '9') {
			return fault.Inputf("Illegal character in %s name %s: %c", label, part, c)
		}
	}
	return nil
}

// parseTypeVersion parses one version component of a type string.
func parseTypeVersion(text, full string) (int, error) {
	if !isDigits(text) {
		return 0, fault.Inputf("Type version string %s could not be parsed to a version", full)
	}
	value, err := strconv.Atoi(text)
	if err != nil {
		return 0, fault.Inputf("Type version string %s could not be parsed to a version", full)
	}
	return value, nil
}
