// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitebackend implements backend.Backend on SQLite (through
// lib/sqlitepool) and a lib/blobstore directory.
//
// Every allocation (workspace id, object id, version number) happens
// inside an IMMEDIATE transaction with an UPDATE ... RETURNING on a
// counter column, so SQLite's single-writer lock is what makes version
// numbering atomic. No in-process locks are held.
//
// Timestamps are stored as Unix milliseconds. Metadata maps,
// provenance, and reference lists are deterministic CBOR (lib/codec).
package sqlitebackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/codec"
	"github.com/bureau-foundation/wsstore/lib/sqlitepool"
)

// migrations is the append-only schema history.
var migrations = []string{
	`
CREATE TABLE workspaces (
	id             INTEGER PRIMARY KEY,
	name           TEXT    NOT NULL,
	owner          TEXT    NOT NULL,
	description    TEXT    NOT NULL DEFAULT '',
	metadata       BLOB,
	created        INTEGER NOT NULL,
	modified       INTEGER NOT NULL,
	deleted        INTEGER NOT NULL DEFAULT 0,
	locked         INTEGER NOT NULL DEFAULT 0,
	global_read    INTEGER NOT NULL DEFAULT 0,
	object_counter INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX workspaces_live_name ON workspaces (name) WHERE deleted = 0;
CREATE INDEX workspaces_owner ON workspaces (owner);

CREATE TABLE grants (
	workspace INTEGER NOT NULL REFERENCES workspaces (id),
	user      TEXT    NOT NULL,
	level     INTEGER NOT NULL,
	PRIMARY KEY (workspace, user)
);

CREATE TABLE objects (
	workspace     INTEGER NOT NULL REFERENCES workspaces (id),
	id            INTEGER NOT NULL,
	name          TEXT    NOT NULL,
	hidden        INTEGER NOT NULL DEFAULT 0,
	deleted       INTEGER NOT NULL DEFAULT 0,
	version_count INTEGER NOT NULL DEFAULT 0,
	modified      INTEGER NOT NULL,
	PRIMARY KEY (workspace, id),
	UNIQUE (workspace, name)
);

CREATE TABLE versions (
	workspace   INTEGER NOT NULL,
	object      INTEGER NOT NULL,
	version     INTEGER NOT NULL,
	type_module TEXT    NOT NULL,
	type_name   TEXT    NOT NULL,
	type_major  INTEGER NOT NULL,
	type_minor  INTEGER NOT NULL,
	checksum    BLOB    NOT NULL,
	size        INTEGER NOT NULL,
	metadata    BLOB,
	provenance  BLOB,
	refs        BLOB,
	extract     BLOB,
	saved_by    TEXT    NOT NULL,
	saved       INTEGER NOT NULL,
	copied_from TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (workspace, object, version),
	FOREIGN KEY (workspace, object) REFERENCES objects (workspace, id)
);
CREATE INDEX versions_type ON versions (type_module, type_name, type_major, type_minor);
CREATE INDEX versions_saved ON versions (saved);

CREATE TABLE version_refs (
	workspace        INTEGER NOT NULL,
	object           INTEGER NOT NULL,
	version          INTEGER NOT NULL,
	target_workspace INTEGER NOT NULL,
	target_object    INTEGER NOT NULL,
	target_version   INTEGER NOT NULL,
	PRIMARY KEY (workspace, object, version, target_workspace, target_object, target_version),
	FOREIGN KEY (workspace, object, version) REFERENCES versions (workspace, object, version)
);
CREATE INDEX version_refs_target ON version_refs (target_workspace, target_object, target_version);
`,
}

// SchemaVersion is the database schema version this package writes.
var SchemaVersion = len(migrations)

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database path. The parent directory must
	// exist.
	Path string

	// PoolSize is passed to sqlitepool.
	PoolSize int

	// Blobs stores document bytes. Required.
	Blobs *blobstore.Store

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Store is the SQLite backend.
type Store struct {
	pool   *sqlitepool.Pool
	blobs  *blobstore.Store
	logger *slog.Logger
}

var _ backend.Backend = (*Store)(nil)

// Open opens (creating and migrating as needed) the database at
// cfg.Path.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("sqlitebackend: Blobs is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(ctx, sqlitepool.Config{
		Path:       cfg.Path,
		PoolSize:   cfg.PoolSize,
		Logger:     logger,
		Migrations: migrations,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitebackend: %w", err)
	}
	return &Store{pool: pool, blobs: cfg.Blobs, logger: logger}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// PutBlob implements backend.Backend.
func (s *Store) PutBlob(ctx context.Context, checksum blobstore.Checksum, content io.Reader) error {
	_, err := s.blobs.Put(ctx, checksum, content)
	return err
}

// OpenBlob implements backend.Backend.
func (s *Store) OpenBlob(ctx context.Context, checksum blobstore.Checksum) (io.ReadCloser, error) {
	reader, err := s.blobs.Open(ctx, checksum)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("blob %s: %w", checksum, backend.ErrNotFound)
	}
	return reader, err
}

// read runs fn on a pooled connection without a transaction.
func (s *Store) read(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.pool.With(ctx, fn)
}

// write runs fn inside an IMMEDIATE transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) write(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.pool.With(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlitebackend: begin transaction: %w", err)
		}
		defer endTransaction(&err)
		return fn(conn)
	})
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultConstraintUnique || code == sqlite.ResultConstraintPrimaryKey
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// columnBlob copies a BLOB column. Returns nil for NULL.
func columnBlob(stmt *sqlite.Stmt, column int) []byte {
	if stmt.ColumnIsNull(column) {
		return nil
	}
	buffer := make([]byte, stmt.ColumnLen(column))
	stmt.ColumnBytes(column, buffer)
	return buffer
}

// encodeMap encodes a metadata map, storing NULL for empty maps.
func encodeMap(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return data, nil
}

func decodeMap(data []byte) (map[string]string, error) {
	m := map[string]string{}
	if len(data) == 0 {
		return m, nil
	}
	if err := codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return m, nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// matchesMetadata reports whether every filter pair is present in m.
func matchesMetadata(m, filter map[string]string) bool {
	for key, value := range filter {
		if actual, ok := m[key]; !ok || actual != value {
			return false
		}
	}
	return true
}

// blobBytes returns a nil-safe argument for a BLOB column: nil binds
// NULL.
func blobBytes(data []byte) any {
	if data == nil {
		return nil
	}
	return data
}

func isNotFound(err error) bool { return errors.Is(err, backend.ErrNotFound) }
