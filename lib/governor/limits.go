// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package governor

import (
	"github.com/bureau-foundation/wsstore/lib/fault"
)

// Default limits.
const (
	DefaultMetadataBytes   = 16000
	DefaultProvenanceBytes = 1000000
	DefaultExtractBytes    = 15000000
	DefaultBufferThreshold = 16 << 20
)

// Limits are the configured byte limits. Zero disables a limit.
type Limits struct {
	MetadataBytes   int64
	ProvenanceBytes int64
	ExtractBytes    int64
	ObjectBytes     int64
	ResponseBytes   int64

	// BufferThreshold is the canonical document size above which a
	// Buffer spills to disk. Zero keeps everything in memory.
	BufferThreshold int64

	// TempDir receives spill files. Empty means os.TempDir().
	TempDir string
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		MetadataBytes:   DefaultMetadataBytes,
		ProvenanceBytes: DefaultProvenanceBytes,
		ExtractBytes:    DefaultExtractBytes,
		BufferThreshold: DefaultBufferThreshold,
	}
}

// CheckMetadata checks an object's serialized metadata size.
func (l Limits) CheckMetadata(position int, size int64) error {
	return check(position, "metadata", size, l.MetadataBytes)
}

// CheckProvenance checks an object's serialized provenance size.
func (l Limits) CheckProvenance(position int, size int64) error {
	return check(position, "provenance", size, l.ProvenanceBytes)
}

// CheckExtract checks an object's searchable sub-document size.
func (l Limits) CheckExtract(position int, size int64) error {
	return check(position, "searchable subset", size, l.ExtractBytes)
}

// CheckObject checks an object's canonical document size.
func (l Limits) CheckObject(position int, size int64) error {
	return check(position, "document", size, l.ObjectBytes)
}

func check(position int, what string, size, limit int64) error {
	if limit > 0 && size > limit {
		return fault.Resourcef("Object #%d %s size %d exceeds the limit of %d bytes", position, what, size, limit)
	}
	return nil
}

// ResponseBudget accumulates the bytes of one retrieval call.
type ResponseBudget struct {
	limit int64
	used  int64
}

// NewResponseBudget returns a budget for limit bytes; zero is
// unlimited.
func (l Limits) NewResponseBudget() *ResponseBudget {
	return &ResponseBudget{limit: l.ResponseBytes}
}

// Add charges size bytes for the object at position. The charge is
// not recorded when it would exceed the limit.
func (b *ResponseBudget) Add(position int, size int64) error {
	total := b.used + size
	if b.limit > 0 && total > b.limit {
		return fault.Resourcef("Object #%d brings the response to %d bytes, exceeding the limit of %d bytes",
			position, total, b.limit)
	}
	b.used = total
	return nil
}

// Used returns the bytes charged so far.
func (b *ResponseBudget) Used() int64 { return b.used }
