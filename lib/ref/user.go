// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// allUsersHandle is the wire form of the "all users" wildcard grantee.
const allUsersHandle = "*"

// User identifies a caller or a permission grantee. It is either an
// authenticated user handle or the [AllUsers] wildcard, which only
// ever appears as a grantee.
//
// User is an immutable value type compared by handle. The zero value
// means "no user": an anonymous caller.
type User struct {
	handle string
}

// AllUsers is the wildcard grantee standing for every user, including
// anonymous callers. Grants to AllUsers are capped at read access.
var AllUsers = User{handle: allUsersHandle}

// ParseUser validates an authenticated user handle: 1 to
// MaxUserLength characters from a-z, A-Z, 0-9, _ . -
func ParseUser(handle string) (User, error) {
	if handle == "" {
		return User{}, fault.Inputf("Username cannot be null or the empty string")
	}
	if len(handle) > MaxUserLength {
		return User{}, fault.Inputf("Username exceeds the maximum length of %d", MaxUserLength)
	}
	if c, found := firstIllegal(handle, &userChars); found {
		return User{}, fault.Inputf("Illegal character in username %s: %c", handle, c)
	}
	return User{handle: handle}, nil
}

// ParseGrantee is like ParseUser but also accepts "*" for AllUsers.
func ParseGrantee(handle string) (User, error) {
	if handle == allUsersHandle {
		return AllUsers, nil
	}
	return ParseUser(handle)
}

// MustParseUser is like ParseUser but panics on error. Use in tests
// and static initialization where the input is known-valid.
func MustParseUser(handle string) User {
	u, err := ParseUser(handle)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseUser(%q): %v", handle, err))
	}
	return u
}

// String returns the handle ("*" for AllUsers, "" for anonymous).
func (u User) String() string { return u.handle }

// IsZero reports whether u is the anonymous (no user) value.
func (u User) IsZero() bool { return u.handle == "" }

// IsAllUsers reports whether u is the wildcard grantee.
func (u User) IsAllUsers() bool { return u.handle == allUsersHandle }

// MarshalText implements encoding.TextMarshaler.
func (u User) MarshalText() ([]byte, error) {
	return []byte(u.handle), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the anonymous value; "*" produces AllUsers.
func (u *User) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*u = User{}
		return nil
	}
	parsed, err := ParseGrantee(string(data))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
