// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package permission

import (
	"sort"
	"sync"

	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Admins is the set of system administrators. It is owned by the
// service instance that consults it; the zero value is not usable,
// call NewAdmins.
//
// Admins is safe for concurrent use.
type Admins struct {
	mu    sync.RWMutex
	users map[ref.User]struct{}
}

// NewAdmins returns a set holding users.
func NewAdmins(users ...ref.User) *Admins {
	a := &Admins{users: make(map[ref.User]struct{}, len(users))}
	for _, user := range users {
		if !user.IsZero() && !user.IsAllUsers() {
			a.users[user] = struct{}{}
		}
	}
	return a
}

// Contains reports whether user is an administrator. Anonymous callers
// never are.
func (a *Admins) Contains(user ref.User) bool {
	if a == nil || user.IsZero() {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.users[user]
	return ok
}

// Add makes user an administrator.
func (a *Admins) Add(user ref.User) {
	if user.IsZero() || user.IsAllUsers() {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users[user] = struct{}{}
}

// Remove revokes user's administrator status.
func (a *Admins) Remove(user ref.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, user)
}

// List returns the administrators in handle order.
func (a *Admins) List() []ref.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	users := make([]ref.User, 0, len(a.users))
	for user := range a.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].String() < users[j].String() })
	return users
}
