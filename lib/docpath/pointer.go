// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package docpath addresses locations inside decoded JSON documents
// with RFC 6901 JSON pointers.
//
// Documents are the values produced by decoding JSON into any:
// map[string]any, []any, string, json.Number, bool, and nil. The
// package never mutates a document; [Select] builds a new value.
//
// In selection paths the token "*" matches every element of an array
// or every value of an object. Literal "*" keys cannot be selected
// individually.
package docpath

import (
	"strconv"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// Wildcard matches every child in a selection path.
const Wildcard = "*"

// Pointer is a parsed JSON pointer: the sequence of unescaped
// reference tokens. The empty Pointer addresses the whole document.
type Pointer []string

var (
	escaper   = strings.NewReplacer("~", "~0", "/", "~1")
	unescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

// Parse parses a JSON pointer string. "" is the root; any other
// pointer must start with "/". A "~" must be followed by "0" or "1".
func Parse(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}
	if s[0] != '/' {
		return nil, fault.Inputf("Invalid path %q: must start with /", s)
	}
	raw := strings.Split(s[1:], "/")
	tokens := make(Pointer, len(raw))
	for i, token := range raw {
		for j := 0; j < len(token); j++ {
			if token[j] == '~' && (j+1 == len(token) || (token[j+1] != '0' && token[j+1] != '1')) {
				return nil, fault.Inputf("Invalid path %q: bad escape in segment %q", s, token)
			}
		}
		tokens[i] = unescaper.Replace(token)
	}
	return tokens, nil
}

// MustParse is Parse for constant pointers. Panics on error.
func MustParse(s string) Pointer {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String formats the pointer with "~" and "/" escaped.
func (p Pointer) String() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, token := range p {
		b.WriteByte('/')
		b.WriteString(escaper.Replace(token))
	}
	return b.String()
}

// Append returns a new pointer with token added. The receiver is not
// modified.
func (p Pointer) Append(token string) Pointer {
	out := make(Pointer, len(p)+1)
	copy(out, p)
	out[len(p)] = token
	return out
}

// Index returns a new pointer with an array index appended.
func (p Pointer) Index(i int) Pointer {
	return p.Append(strconv.Itoa(i))
}

// Get returns the value at p, and whether it exists.
func Get(doc any, p Pointer) (any, bool) {
	current := doc
	for _, token := range p {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[token]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			index, ok := arrayIndex(token, len(node))
			if !ok {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// arrayIndex parses a decimal array index without leading zeros.
func arrayIndex(token string, length int) (int, bool) {
	if token == "" || (len(token) > 1 && token[0] == '0') {
		return 0, false
	}
	index, err := strconv.Atoi(token)
	if err != nil || index < 0 || index >= length {
		return 0, false
	}
	return index, true
}
