// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package refresolve resolves the identifiers inside a validated
// document to absolute addresses and rewrites the document to use them.
//
// One [Batch] serves one save call. It caches resolutions by
// identifier text and counts distinct identifiers across every
// document and provenance list in the call; the first document that
// pushes the count past the engine's cap fails the call.
//
// For each store-reference occurrence the batch parses the identifier,
// resolves it through the [Lookup] (which enforces read access), checks
// the target's type against the occurrence's allowed types, and
// records the address. External identifiers are counted but neither
// resolved nor rewritten.
//
// Rewriting is a single pass that builds a new document. Containers
// with no rewrite beneath them are shared with the input, which is
// never modified. When two map keys resolve to the same address the
// rewrite fails with an integrity error instead of dropping an entry.
package refresolve
