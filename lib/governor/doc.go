// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package governor enforces the store's byte limits and bounds the
// memory used while canonicalizing documents.
//
// Each limit is independent and zero means unlimited. Violations are
// fault.Resource errors that name the object's 1-based position in the
// call, the measured size, and the allowed size.
//
// [Buffer] holds canonical document bytes in memory up to a threshold
// and spills to a temporary file beyond it. Close removes the file and
// is safe to call on every exit path, repeatedly.
package governor
