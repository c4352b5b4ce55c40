// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size in bytes of the store key and every derived
// per-blob key.
const KeySize = 32

// segmentSize is the plaintext size of every segment but the last.
const segmentSize = 64 << 10

// segmentHeaderSize is nonce + 4-byte ciphertext length.
const segmentHeaderSize = chacha20poly1305.NonceSizeX + 4

// hkdfInfoBlob separates blob keys from any other use of the store
// key. Changing it invalidates every encrypted blob.
var hkdfInfoBlob = []byte("wsstore.blob.v1")

var errTruncated = errors.New("encrypted blob is truncated")

// deriveBlobKey derives the key for one blob from the store key and
// the blob's checksum.
func deriveBlobKey(storeKey []byte, checksum Checksum) ([]byte, error) {
	info := make([]byte, len(hkdfInfoBlob)+len(checksum))
	copy(info, hkdfInfoBlob)
	copy(info[len(hkdfInfoBlob):], checksum[:])
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, storeKey, nil, info), key); err != nil {
		return nil, fmt.Errorf("deriving blob key: %w", err)
	}
	return key, nil
}

// segmentAAD builds the additional authenticated data for one segment.
func segmentAAD(checksum Checksum, index uint64, final bool) []byte {
	aad := make([]byte, 1+len(checksum)+8+1)
	aad[0] = formatVersion
	copy(aad[1:], checksum[:])
	binary.BigEndian.PutUint64(aad[1+len(checksum):], index)
	if final {
		aad[len(aad)-1] = 1
	}
	return aad
}

// segmentWriter seals everything written to it in segmentSize pieces.
// Close seals the final (possibly empty) segment; it must be called
// for the blob to be readable.
type segmentWriter struct {
	out      io.Writer
	aead     cipher.AEAD
	checksum Checksum
	buffer   []byte
	index    uint64
}

func newSegmentWriter(out io.Writer, key []byte, checksum Checksum) (*segmentWriter, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return &segmentWriter{
		out:      out,
		aead:     aead,
		checksum: checksum,
		buffer:   make([]byte, 0, segmentSize),
	}, nil
}

func (w *segmentWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		// A full buffer is only sealed once more data arrives, so the
		// last segment is always sealed by Close with the final flag.
		if len(w.buffer) == segmentSize {
			if err := w.seal(false); err != nil {
				return written, err
			}
		}
		take := min(segmentSize-len(w.buffer), len(p))
		w.buffer = append(w.buffer, p[:take]...)
		p = p[take:]
		written += take
	}
	return written, nil
}

func (w *segmentWriter) Close() error {
	return w.seal(true)
}

func (w *segmentWriter) seal(final bool) error {
	header := make([]byte, segmentHeaderSize)
	nonce := header[:chacha20poly1305.NonceSizeX]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generating random nonce: %w", err)
	}
	sealed := w.aead.Seal(nil, nonce, w.buffer, segmentAAD(w.checksum, w.index, final))
	binary.BigEndian.PutUint32(header[chacha20poly1305.NonceSizeX:], uint32(len(sealed)))
	if _, err := w.out.Write(header); err != nil {
		return err
	}
	if _, err := w.out.Write(sealed); err != nil {
		return err
	}
	w.buffer = w.buffer[:0]
	w.index++
	return nil
}

// segmentReader opens segments written by segmentWriter. It returns
// errTruncated if the stream ends before the final segment.
type segmentReader struct {
	in       io.Reader
	aead     cipher.AEAD
	checksum Checksum
	plain    []byte
	index    uint64
	done     bool
}

func newSegmentReader(in io.Reader, key []byte, checksum Checksum) (*segmentReader, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}
	return &segmentReader{in: in, aead: aead, checksum: checksum}, nil
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for len(r.plain) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.plain)
	r.plain = r.plain[n:]
	return n, nil
}

func (r *segmentReader) open() error {
	header := make([]byte, segmentHeaderSize)
	if _, err := io.ReadFull(r.in, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errTruncated
		}
		return err
	}
	length := binary.BigEndian.Uint32(header[chacha20poly1305.NonceSizeX:])
	if length < chacha20poly1305.Overhead || length > segmentSize+chacha20poly1305.Overhead {
		return fmt.Errorf("encrypted segment %d has invalid length %d", r.index, length)
	}
	sealed := make([]byte, length)
	if _, err := io.ReadFull(r.in, sealed); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errTruncated
		}
		return err
	}
	nonce := header[:chacha20poly1305.NonceSizeX]
	// Try the non-final AAD first; only the last segment carries the
	// final marker.
	plain, err := r.aead.Open(nil, nonce, sealed, segmentAAD(r.checksum, r.index, false))
	if err != nil {
		plain, err = r.aead.Open(nil, nonce, sealed, segmentAAD(r.checksum, r.index, true))
		if err != nil {
			return fmt.Errorf("AEAD decryption of segment %d failed (wrong key, tampered data, or mismatched checksum): %w",
				r.index, err)
		}
		r.done = true
	}
	r.plain = plain
	r.index++
	return nil
}
