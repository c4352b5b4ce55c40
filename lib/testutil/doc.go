// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Workspace names must be unique among non-deleted
// workspaces, so tests that share a store name their workspaces with
// it instead of hard-coding strings.
//
// [TempStore] lays out a database path, blob directory, and spill
// directory under t.TempDir() for tests that open a real store.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
