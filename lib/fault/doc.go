// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault classifies the errors returned by the workspace store.
//
// Every failure mode in the store is a logic, authorization, or size
// violation rather than a transient fault, so nothing is retried. What
// callers need instead is the class of the failure: a malformed name
// is reported differently from a permission denial, and a deleted
// workspace differently from one that never existed.
//
// Errors produced anywhere in the store either are a [*Error] or wrap
// one, or implement [Classified] directly (structured error types such
// as resolve.ObjectError). [KindOf] recovers the class through any
// amount of fmt.Errorf wrapping:
//
//	if fault.Is(err, fault.Deleted) {
//	    // the workspace or object exists but has been deleted
//	}
//
// Errors that carry no classification report [Internal].
package fault
