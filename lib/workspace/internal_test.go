// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

func TestAutoNameNumber(t *testing.T) {
	tests := []struct {
		name string
		want int64
		ok   bool
	}{
		{"auto1", 1, true},
		{"auto42", 42, true},
		{"auto", 0, false},
		{"auto0", 0, false},
		{"auto07", 0, false},
		{"auto-3", 0, false},
		{"autox", 0, false},
		{"manual5", 0, false},
		{"auto99999999999999999999", 0, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := autoNameNumber(test.name)
			if got != test.want || ok != test.ok {
				t.Errorf("autoNameNumber(%q) = %d, %v; want %d, %v", test.name, got, ok, test.want, test.ok)
			}
		})
	}
}

func TestRejectionsAreCountedByKind(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := newMetrics(registry)
	if err != nil {
		t.Fatalf("newMetrics: %v", err)
	}
	m.rejected(fault.Inputf("bad"))
	m.rejected(fault.Inputf("worse"))
	m.rejected(fault.Resourcef("too big"))

	if got := testutil.ToFloat64(m.rejections.WithLabelValues(fault.Input.String())); got != 2 {
		t.Errorf("input rejections = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.rejections.WithLabelValues(fault.Resource.String())); got != 1 {
		t.Errorf("resource rejections = %v, want 1", got)
	}

	// Registering twice against one registry is not an error.
	if _, err := newMetrics(registry); err != nil {
		t.Fatalf("second newMetrics: %v", err)
	}
}

func TestTruncateCountsRunes(t *testing.T) {
	tests := []struct {
		input string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly", 7, "exactly"},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 5, "héllo"},
	}
	for _, test := range tests {
		if got := truncate(test.input, test.limit); got != test.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", test.input, test.limit, got, test.want)
		}
	}
}
