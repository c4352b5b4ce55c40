// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// formatVersion is the blob header version byte.
const formatVersion byte = 1

// headerSize is magic + version + flags.
const headerSize = 6

// encryptedFlag marks an encrypted payload in the header flags byte.
const encryptedFlag byte = 0x80

var magic = []byte("WSDB")

var (
	// ErrNotFound is returned by Open for a checksum with no blob.
	ErrNotFound = errors.New("blob not found")

	// ErrChecksumMismatch is returned by Put when the bytes written do
	// not hash to the declared checksum.
	ErrChecksumMismatch = errors.New("blob content does not match its checksum")
)

// Config holds the parameters for opening a Store.
type Config struct {
	// Root is the store directory. Created if missing.
	Root string

	// Compression applies to newly written blobs. Existing blobs are
	// read with whatever their header says.
	Compression Compression

	// Key enables encryption at rest for newly written blobs. Must be
	// nil or KeySize bytes. Encrypted blobs cannot be read without it.
	Key []byte

	// Logger receives blob write messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is a content-addressed blob directory. It is safe for
// concurrent use: concurrent Puts of the same checksum race only on
// the final rename, and both renames install identical content.
type Store struct {
	root        string
	compression Compression
	key         []byte
	logger      *slog.Logger
}

// Open creates the store directory layout if needed and returns a
// Store rooted there.
func Open(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("blobstore: Root is required")
	}
	if cfg.Key != nil && len(cfg.Key) != KeySize {
		return nil, fmt.Errorf("blobstore: key is %d bytes, want %d", len(cfg.Key), KeySize)
	}
	if cfg.Compression > CompressionZstd {
		return nil, fmt.Errorf("blobstore: unsupported compression %d", uint8(cfg.Compression))
	}
	if err := os.MkdirAll(filepath.Join(cfg.Root, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: creating %s: %w", cfg.Root, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		root:        cfg.Root,
		compression: cfg.Compression,
		key:         cfg.Key,
		logger:      logger,
	}, nil
}

// Path returns the sharded filesystem path of a blob.
func (s *Store) Path(checksum Checksum) string {
	hexString := checksum.String()
	return filepath.Join(s.root, hexString[:2], hexString[2:4], hexString+".blob")
}

// Has reports whether a blob with the given checksum is stored.
func (s *Store) Has(checksum Checksum) (bool, error) {
	_, err := os.Stat(s.Path(checksum))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("blobstore: stat %s: %w", checksum, err)
}

// Put stores the bytes read from r under checksum and returns the
// number of plaintext bytes consumed. If the blob already exists, Put
// returns immediately without reading r.
func (s *Store) Put(ctx context.Context, checksum Checksum, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	exists, err := s.Has(checksum)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	tmpFile, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "blob-*")
	if err != nil {
		return 0, fmt.Errorf("blobstore: creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	flags := byte(s.compression)
	if s.key != nil {
		flags |= encryptedFlag
	}
	header := append(append([]byte{}, magic...), formatVersion, flags)
	if _, err := tmpFile.Write(header); err != nil {
		return 0, fmt.Errorf("blobstore: writing header: %w", err)
	}

	var payload io.Writer = tmpFile
	var sealer *segmentWriter
	if s.key != nil {
		blobKey, err := deriveBlobKey(s.key, checksum)
		if err != nil {
			return 0, err
		}
		sealer, err = newSegmentWriter(tmpFile, blobKey, checksum)
		if err != nil {
			return 0, err
		}
		payload = sealer
	}
	compressor, err := newCompressor(payload, s.compression)
	if err != nil {
		return 0, err
	}

	hasher := NewHasher()
	written, err := io.Copy(io.MultiWriter(compressor, hasher), contextReader{ctx: ctx, r: r})
	if err != nil {
		return written, fmt.Errorf("blobstore: writing %s: %w", checksum, err)
	}
	if err := compressor.Close(); err != nil {
		return written, fmt.Errorf("blobstore: flushing compressor: %w", err)
	}
	if sealer != nil {
		if err := sealer.Close(); err != nil {
			return written, fmt.Errorf("blobstore: sealing final segment: %w", err)
		}
	}
	if actual := hasher.Sum(); actual != checksum {
		return written, fmt.Errorf("blobstore: %w: declared %s, content hashes to %s",
			ErrChecksumMismatch, checksum, actual)
	}
	if err := tmpFile.Sync(); err != nil {
		return written, fmt.Errorf("blobstore: syncing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return written, fmt.Errorf("blobstore: closing temp file: %w", err)
	}

	finalPath := s.Path(checksum)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return written, fmt.Errorf("blobstore: creating shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return written, fmt.Errorf("blobstore: renaming blob to %s: %w", finalPath, err)
	}
	success = true

	s.logger.Debug("blob stored",
		"checksum", checksum.String(),
		"bytes", written,
		"compression", s.compression.String(),
		"encrypted", s.key != nil,
	)
	return written, nil
}

// Open returns a reader over the plaintext of a stored blob. The
// caller must Close it. Returns an error wrapping ErrNotFound if no
// blob has the checksum.
func (s *Store) Open(ctx context.Context, checksum Checksum) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := os.Open(s.Path(checksum))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("blobstore: %s: %w", checksum, ErrNotFound)
		}
		return nil, fmt.Errorf("blobstore: opening %s: %w", checksum, err)
	}

	reader, err := s.openPayload(file, checksum)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &blobReader{ReadCloser: reader, file: file}, nil
}

// ReadAll returns the full plaintext of a stored blob.
func (s *Store) ReadAll(ctx context.Context, checksum Checksum) ([]byte, error) {
	reader, err := s.Open(ctx, checksum)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("blobstore: reading %s: %w", checksum, err)
	}
	return data, nil
}

func (s *Store) openPayload(file *os.File, checksum Checksum) (io.ReadCloser, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(file, header); err != nil {
		return nil, fmt.Errorf("blobstore: reading header of %s: %w", checksum, err)
	}
	if !bytes.Equal(header[:len(magic)], magic) {
		return nil, fmt.Errorf("blobstore: %s is not a blob file", checksum)
	}
	if header[4] != formatVersion {
		return nil, fmt.Errorf("blobstore: %s has format version %d, want %d", checksum, header[4], formatVersion)
	}
	flags := header[5]

	var payload io.Reader = file
	if flags&encryptedFlag != 0 {
		if s.key == nil {
			return nil, fmt.Errorf("blobstore: %s is encrypted and no key is configured", checksum)
		}
		blobKey, err := deriveBlobKey(s.key, checksum)
		if err != nil {
			return nil, err
		}
		opener, err := newSegmentReader(file, blobKey, checksum)
		if err != nil {
			return nil, err
		}
		payload = opener
	}
	return newDecompressor(payload, Compression(flags&0x0f))
}

// blobReader closes both the decompressor and the underlying file.
type blobReader struct {
	io.ReadCloser
	file *os.File
}

func (r *blobReader) Close() error {
	decompressorErr := r.ReadCloser.Close()
	fileErr := r.file.Close()
	return errors.Join(decompressorErr, fileErr)
}

// contextReader stops a copy when ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
