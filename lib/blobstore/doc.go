// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore stores document bytes on the local filesystem,
// addressed by their checksum.
//
// A checksum is the BLAKE3 keyed hash (document domain) of a
// document's canonical JSON encoding, so two versions with the same
// canonical content share one blob. Blobs live at
//
//	<root>/<hex[0:2]>/<hex[2:4]>/<hex>.blob
//
// and are written through a temporary file in <root>/tmp followed by
// an atomic rename, so a reader never sees a partial blob.
//
// # Blob format
//
//	[magic "WSDB"] [format version: 1 byte] [flags: 1 byte] [payload]
//
// The low nibble of flags is the [Compression] tag; bit 7 marks an
// encrypted payload. Compression is streaming zstd or LZ4 frames.
// When a key is configured the compressed stream is cut into
// segments, each sealed with XChaCha20-Poly1305 under a per-blob key
// derived by HKDF-SHA256 from the store key and the checksum. Segment
// AAD binds the format version, the checksum, the segment index, and
// a final-segment marker, so blobs cannot be swapped, reordered, or
// truncated without detection.
//
// Put verifies the checksum of the bytes it is given while writing
// them; a mismatch discards the temporary file.
package blobstore
