// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"strings"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

const (
	// MaxNameLength is the maximum length of a workspace or object
	// name, in bytes.
	MaxNameLength = 255

	// MaxUserLength is the maximum length of a user handle.
	MaxUserLength = 100

	// compoundSeparator separates the owner from the local name in a
	// namespaced workspace name ("alice:genomes").
	compoundSeparator = ":"
)

// nameChars is the set of characters permitted in workspace and
// object names: a-z, A-Z, 0-9 and the symbols _ . | -
//
// Older deployments capped names at 100 characters and disallowed
// '-'; those names remain valid under this rule set, so no migration
// of stored names is needed.
var nameChars [256]bool

// userChars is the set of characters permitted in user handles.
var userChars [256]bool

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		nameChars[c] = true
		userChars[c] = true
	}
	for c := byte('A'); c <= 'Z'; c++ {
		nameChars[c] = true
		userChars[c] = true
	}
	for c := byte('0'); c <= '9'; c++ {
		nameChars[c] = true
		userChars[c] = true
	}
	nameChars['_'] = true
	nameChars['.'] = true
	nameChars['|'] = true
	nameChars['-'] = true
	userChars['_'] = true
	userChars['.'] = true
	userChars['-'] = true
}

// validateName checks the rules shared by workspace and object names:
// non-empty, at most MaxNameLength bytes, restricted characters, not
// composed entirely of digits. label names the kind of name in errors
// ("Workspace name", "Object name").
func validateName(name, label string) error {
	if name == "" {
		return fault.Inputf("%s cannot be null or the empty string", label)
	}
	if len(name) > MaxNameLength {
		return fault.Inputf("%s exceeds the maximum length of %d", label, MaxNameLength)
	}
	if c, found := firstIllegal(name, &nameChars); found {
		return fault.Inputf("Illegal character in %s %s: %c", strings.ToLower(label), name, c)
	}
	if isDigits(name) {
		return fault.Inputf("%s cannot be an integer: %s", label, name)
	}
	return nil
}

// firstIllegal returns the first character of s not in the allowed
// table.
func firstIllegal(s string, allowed *[256]bool) (rune, bool) {
	for _, r := range s {
		if r >= 256 || !allowed[r] {
			return r, true
		}
	}
	return 0, false
}

// isDigits reports whether s is non-empty and entirely ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
