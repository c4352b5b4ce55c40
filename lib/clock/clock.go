// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the current time for testability. Production code
// injects Real(); tests inject Fake() with deterministic time control.
//
// The store only ever reads the time (save timestamps, workspace
// modification times, date-range filters), so Clock has no timer
// operations.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}
