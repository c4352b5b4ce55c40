// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

// Kind is the classification of an error.
type Kind int

const (
	// Internal is an unclassified failure: backend I/O, corrupt
	// records, programming errors.
	Internal Kind = iota

	// Input means the caller supplied a malformed name, reference,
	// type, or parameter. Always detectable locally.
	Input

	// Authorization means the caller lacks the permission for the
	// action, or the workspace is locked.
	Authorization

	// NotFound means the workspace, object, or version never existed.
	NotFound

	// Deleted means the workspace or object exists but is deleted.
	Deleted

	// Inaccessible means the target exists but the caller may not
	// read it.
	Inaccessible

	// Integrity means a document violates a reference constraint:
	// a disallowed target type or a key collision after rewriting.
	Integrity

	// Resource means a size or count limit was exceeded.
	Resource
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal"
	case Input:
		return "input"
	case Authorization:
		return "authorization"
	case NotFound:
		return "not_found"
	case Deleted:
		return "deleted"
	case Inaccessible:
		return "inaccessible"
	case Integrity:
		return "integrity"
	case Resource:
		return "resource"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Classified is implemented by every error type that knows its Kind.
type Classified interface {
	error
	FaultKind() Kind
}

// Error is the general classified error. Message is what the caller
// sees; Err, if set, is the underlying cause and is reachable through
// errors.Is/As.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error returns Message, falling back to the wrapped error's text.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// FaultKind implements Classified.
func (e *Error) FaultKind() Kind { return e.Kind }

// New returns a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, prefixing its message. The result unwraps to
// err. Returns nil when err is nil.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	return &Error{Kind: kind, Message: prefix + ": " + err.Error(), Err: err}
}

// Inputf returns an Input error.
func Inputf(format string, args ...any) *Error { return New(Input, format, args...) }

// Authorizationf returns an Authorization error.
func Authorizationf(format string, args ...any) *Error {
	return New(Authorization, format, args...)
}

// NotFoundf returns a NotFound error.
func NotFoundf(format string, args ...any) *Error { return New(NotFound, format, args...) }

// Deletedf returns a Deleted error.
func Deletedf(format string, args ...any) *Error { return New(Deleted, format, args...) }

// Inaccessiblef returns an Inaccessible error.
func Inaccessiblef(format string, args ...any) *Error {
	return New(Inaccessible, format, args...)
}

// Integrityf returns an Integrity error.
func Integrityf(format string, args ...any) *Error { return New(Integrity, format, args...) }

// Resourcef returns a Resource error.
func Resourcef(format string, args ...any) *Error { return New(Resource, format, args...) }

// KindOf returns the classification of err: the Kind of the first
// Classified error in its chain, or Internal.
func KindOf(err error) Kind {
	var classified Classified
	if errors.As(err, &classified) {
		return classified.FaultKind()
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Reclassify returns err with its outermost classification replaced by
// kind and its message prefixed. Used where a lower layer's NotFound
// becomes the caller's Inaccessible, for example.
func Reclassify(kind Kind, err error, format string, args ...any) error {
	return Wrap(kind, err, format, args...)
}
