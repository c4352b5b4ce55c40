// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package governor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrOverLimit is returned by Buffer.Reader after the content passed
// the buffer's limit and was discarded.
var ErrOverLimit = errors.New("governor: buffer content exceeded its limit")

// Buffer accumulates bytes in memory, moving them to a temporary file
// once they pass the spill threshold. Past the hard limit the content
// is discarded and only counted, so the full size is still known for
// the error message.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	threshold int64
	limit     int64
	dir       string

	memory bytes.Buffer
	file   *os.File
	writer *bufio.Writer
	size   int64

	spilled   bool
	discarded bool
	closed    bool
}

// NewBuffer returns a Buffer spilling at l.BufferThreshold into
// l.TempDir. limit is the hard cap (normally l.ObjectBytes); zero is
// unlimited.
func (l Limits) NewBuffer(limit int64) *Buffer {
	dir := l.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	return &Buffer{threshold: l.BufferThreshold, limit: limit, dir: dir}
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.closed {
		return 0, errors.New("governor: write to closed buffer")
	}
	b.size += int64(len(p))
	if b.discarded {
		return len(p), nil
	}
	if b.limit > 0 && b.size > b.limit {
		if err := b.discard(); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	if b.file == nil && b.threshold > 0 && b.size > b.threshold {
		if err := b.spill(); err != nil {
			return 0, err
		}
	}
	if b.writer != nil {
		if _, err := b.writer.Write(p); err != nil {
			return 0, fmt.Errorf("governor: writing spill file: %w", err)
		}
		return len(p), nil
	}
	b.memory.Write(p)
	return len(p), nil
}

// spill moves the in-memory content to a new temporary file.
func (b *Buffer) spill() error {
	path := filepath.Join(b.dir, "wsstore-spill-"+uuid.NewString())
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("governor: creating spill file: %w", err)
	}
	b.file = file
	b.writer = bufio.NewWriterSize(file, 64*1024)
	b.spilled = true
	if _, err := b.writer.Write(b.memory.Bytes()); err != nil {
		return fmt.Errorf("governor: writing spill file: %w", err)
	}
	b.memory = bytes.Buffer{}
	return nil
}

func (b *Buffer) discard() error {
	b.discarded = true
	b.memory = bytes.Buffer{}
	return b.removeFile()
}

// Size returns the number of bytes written, including discarded ones.
func (b *Buffer) Size() int64 { return b.size }

// Spilled reports whether the content ever moved to a temporary file.
func (b *Buffer) Spilled() bool { return b.spilled }

// Reader returns a reader over the full content. The reader is valid
// until Close.
func (b *Buffer) Reader() (io.Reader, error) {
	if b.closed {
		return nil, errors.New("governor: read from closed buffer")
	}
	if b.discarded {
		return nil, ErrOverLimit
	}
	if b.file == nil {
		return bytes.NewReader(b.memory.Bytes()), nil
	}
	if err := b.writer.Flush(); err != nil {
		return nil, fmt.Errorf("governor: flushing spill file: %w", err)
	}
	return io.NewSectionReader(b.file, 0, b.size), nil
}

// Bytes returns the full content, reading it back from disk if it was
// spilled.
func (b *Buffer) Bytes() ([]byte, error) {
	reader, err := b.Reader()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

// Close releases the memory and removes any spill file.
func (b *Buffer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.memory = bytes.Buffer{}
	return b.removeFile()
}

func (b *Buffer) removeFile() error {
	if b.file == nil {
		return nil
	}
	path := b.file.Name()
	closeErr := b.file.Close()
	b.file = nil
	b.writer = nil
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("governor: removing spill file: %w", err)
	}
	return closeErr
}
