// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	savedCommit, savedDirty, savedTime := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedTime })

	GitCommit, GitDirty, BuildTime = "abc1234", "true", "2026-10-01T00:00:00Z"
	want := Version + " (abc1234-dirty, 2026-10-01T00:00:00Z)"
	if got := Info(); got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}
}

func TestFullIncludesSchema(t *testing.T) {
	full := Full(3)
	if !strings.Contains(full, "Schema: 3") {
		t.Errorf("Full(3) = %q, missing schema version", full)
	}
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full(3) = %q, want prefix %q", full, Info())
	}
}
