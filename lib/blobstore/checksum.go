// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Checksum is a 32-byte BLAKE3 digest of a canonical document.
type Checksum [32]byte

// documentDomainKey is the BLAKE3 key for document checksums: the
// ASCII domain name zero-padded to 32 bytes. Changing it invalidates
// every stored checksum.
var documentDomainKey = [32]byte{
	'w', 's', 's', 't', 'o', 'r', 'e', '.', 'd', 'o', 'c', 'u', 'm', 'e', 'n', 't',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Hasher computes a document checksum incrementally. It implements
// io.Writer.
type Hasher struct {
	inner *blake3.Hasher
}

// NewHasher returns a Hasher in its initial state.
func NewHasher() *Hasher {
	inner, err := blake3.NewKeyed(documentDomainKey[:])
	if err != nil {
		panic("blobstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return &Hasher{inner: inner}
}

// Write adds p to the running hash. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) { return h.inner.Write(p) }

// Sum returns the checksum of everything written so far.
func (h *Hasher) Sum() Checksum {
	var sum Checksum
	copy(sum[:], h.inner.Sum(nil))
	return sum
}

// Sum computes the checksum of data in one call.
func Sum(data []byte) Checksum {
	h := NewHasher()
	h.Write(data)
	return h.Sum()
}

// String returns the lowercase hex form.
func (c Checksum) String() string { return hex.EncodeToString(c[:]) }

// IsZero reports whether c is the zero value.
func (c Checksum) IsZero() bool { return c == Checksum{} }

// ParseChecksum parses a 64-character hex string.
func ParseChecksum(s string) (Checksum, error) {
	var sum Checksum
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return sum, fmt.Errorf("parsing checksum: %w", err)
	}
	if len(decoded) != len(sum) {
		return sum, fmt.Errorf("checksum is %d bytes, want %d", len(decoded), len(sum))
	}
	copy(sum[:], decoded)
	return sum, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Checksum) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Checksum) UnmarshalText(data []byte) error {
	parsed, err := ParseChecksum(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
