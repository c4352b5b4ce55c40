// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"fmt"
	"sort"

	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Permission is an access level. Values are ordered; compare with the
// usual operators or AtLeast.
type Permission int

const (
	None Permission = iota
	Read
	Write
	Admin
	Owner
)

// String returns the lowercase level name.
func (p Permission) String() string {
	switch p {
	case None:
		return "none"
	case Read:
		return "read"
	case Write:
		return "write"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// Letter returns the single-letter form ("n", "r", "w", "a", "o")
// used in compact listings.
func (p Permission) Letter() string {
	if p < None || p > Owner {
		return "?"
	}
	return p.String()[:1]
}

// AtLeast reports whether p is at or above required.
func (p Permission) AtLeast(required Permission) bool { return p >= required }

// ParsePermission accepts a level name or its single letter.
func ParsePermission(s string) (Permission, error) {
	switch s {
	case "none", "n":
		return None, nil
	case "read", "r":
		return Read, nil
	case "write", "w":
		return Write, nil
	case "admin", "a":
		return Admin, nil
	case "owner", "o":
		return Owner, nil
	default:
		return None, fault.Inputf("Unknown permission %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Permission) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Permission) UnmarshalText(data []byte) error {
	parsed, err := ParsePermission(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ACL is the access-control state of one workspace.
type ACL struct {
	// Owner holds Owner permission implicitly.
	Owner ref.User

	// Grants holds explicit per-user levels. Never contains the owner,
	// AllUsers, or None entries.
	Grants map[ref.User]Permission

	// GlobalRead grants Read to every caller, anonymous included.
	GlobalRead bool
}

// Effective returns the level user holds. The zero User (anonymous)
// only ever receives the global Read.
func (a ACL) Effective(user ref.User) Permission {
	if !user.IsZero() && user == a.Owner {
		return Owner
	}
	level := a.Explicit(user)
	if a.GlobalRead && level < Read {
		level = Read
	}
	return level
}

// Explicit returns user's explicit grant, ignoring ownership and the
// global flag.
func (a ACL) Explicit(user ref.User) Permission {
	if user.IsZero() {
		return None
	}
	return a.Grants[user]
}

// ReadableOnlyGlobally reports whether user can read solely because of
// the global flag.
func (a ACL) ReadableOnlyGlobally(user ref.User) bool {
	return a.GlobalRead && a.Explicit(user) == None && (user.IsZero() || user != a.Owner)
}

// Listing returns the ACL as a grantee → level map, including the
// owner and, when set, AllUsers at Read. The result is what an
// Admin-level caller sees.
func (a ACL) Listing() map[ref.User]Permission {
	listing := make(map[ref.User]Permission, len(a.Grants)+2)
	for user, level := range a.Grants {
		listing[user] = level
	}
	if !a.Owner.IsZero() {
		listing[a.Owner] = Owner
	}
	if a.GlobalRead {
		listing[ref.AllUsers] = Read
	}
	return listing
}

// Clone returns a deep copy.
func (a ACL) Clone() ACL {
	clone := ACL{Owner: a.Owner, GlobalRead: a.GlobalRead, Grants: make(map[ref.User]Permission, len(a.Grants))}
	for user, level := range a.Grants {
		clone.Grants[user] = level
	}
	return clone
}

// SortedGrantees returns the explicit grantees in handle order.
func (a ACL) SortedGrantees() []ref.User {
	users := make([]ref.User, 0, len(a.Grants))
	for user := range a.Grants {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	return users
}
