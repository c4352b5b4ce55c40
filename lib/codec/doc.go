// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the store's standard CBOR configuration.
//
// The store uses two serialization formats with a clear boundary:
//
//   - JSON for documents: what callers save and get back, what the
//     type system validates, and what is checksummed and written to
//     the blob store.
//   - CBOR for internal columns: version metadata maps, provenance,
//     and resolved reference lists stored in the SQLite backend.
//
// The encoder uses Core Deterministic Encoding, so the same logical
// value always produces identical bytes and column contents can be
// compared directly.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types that also appear in JSON output use `json` tags only;
// fxamacker/cbor falls back to them when `cbor` tags are absent.
// Never put both tags on the same field.
package codec
