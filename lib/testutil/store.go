// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// StorePaths is the on-disk layout of a test store.
type StorePaths struct {
	Database string
	Blobs    string
	Temp     string
}

// TempStore creates the directories for a store under t.TempDir().
// Everything is removed when the test completes.
func TempStore(t testing.TB) StorePaths {
	t.Helper()
	root := t.TempDir()
	paths := StorePaths{
		Database: filepath.Join(root, "store.db"),
		Blobs:    filepath.Join(root, "blobs"),
		Temp:     filepath.Join(root, "tmp"),
	}
	for _, directory := range []string{paths.Blobs, paths.Temp} {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			t.Fatalf("creating %s: %v", directory, err)
		}
	}
	return paths
}
