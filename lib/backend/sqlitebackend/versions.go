// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitebackend

import (
	"context"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/codec"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// versionSelect joins a version with its object's current name and
// flags. Column order is what scanVersion reads.
const versionSelect = `SELECT v.workspace, v.object, v.version, o.name,
	v.type_module, v.type_name, v.type_major, v.type_minor,
	v.checksum, v.size, v.metadata, v.provenance, v.refs, v.extract,
	v.saved_by, v.saved, v.copied_from, o.hidden, o.deleted
FROM versions v
JOIN objects o ON o.workspace = v.workspace AND o.id = v.object`

// Version implements backend.Backend.
func (s *Store) Version(ctx context.Context, workspace, object int64, version int) (backend.VersionRecord, error) {
	var record backend.VersionRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		record, err = loadVersion(conn, workspace, object, version)
		return err
	})
	return record, err
}

// History implements backend.Backend.
func (s *Store) History(ctx context.Context, workspace, object int64) ([]backend.VersionRecord, error) {
	var records []backend.VersionRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		if _, err := loadObject(conn, "workspace = ? AND id = ?", workspace, object); err != nil {
			return err
		}
		var err error
		records, err = loadHistory(conn, workspace, object)
		return err
	})
	return records, err
}

// QueryVersions implements backend.Backend. Results are in save order.
func (s *Store) QueryVersions(ctx context.Context, query backend.VersionQuery) ([]backend.VersionRecord, error) {
	var (
		conditions []string
		args       []any
	)
	if len(query.Workspaces) > 0 {
		conditions = append(conditions, "v.workspace IN ("+placeholders(len(query.Workspaces))+")")
		for _, id := range query.Workspaces {
			args = append(args, id)
		}
	}
	if !query.Type.IsZero() {
		conditions = append(conditions, "v.type_module = ? AND v.type_name = ?")
		args = append(args, query.Type.Module(), query.Type.Name())
		if major, ok := query.Type.Major(); ok {
			conditions = append(conditions, "v.type_major = ?")
			args = append(args, major)
		}
		if minor, ok := query.Type.Minor(); ok {
			conditions = append(conditions, "v.type_minor = ?")
			args = append(args, minor)
		}
	}
	if len(query.SavedBy) > 0 {
		conditions = append(conditions, "v.saved_by IN ("+placeholders(len(query.SavedBy))+")")
		for _, user := range query.SavedBy {
			args = append(args, user.String())
		}
	}
	if !query.SavedAfter.IsZero() {
		conditions = append(conditions, "v.saved > ?")
		args = append(args, millis(query.SavedAfter))
	}
	if !query.SavedBefore.IsZero() {
		conditions = append(conditions, "v.saved < ?")
		args = append(args, millis(query.SavedBefore))
	}
	if !query.ShowHidden {
		conditions = append(conditions, "o.hidden = 0")
	}
	if !query.ShowDeleted {
		conditions = append(conditions, "o.deleted = 0")
	}
	if !query.AllVersions {
		conditions = append(conditions, "v.version = o.version_count")
	}

	statement := versionSelect
	if len(conditions) > 0 {
		statement += " WHERE " + strings.Join(conditions, " AND ")
	}
	statement += " ORDER BY v.rowid"

	var records []backend.VersionRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return collectVersions(conn, statement, args, func(record backend.VersionRecord) bool {
			if !matchesMetadata(record.Metadata, query.Metadata) {
				return true
			}
			records = append(records, record)
			return query.Limit <= 0 || len(records) < query.Limit
		})
	})
	return records, err
}

// ReferencingVersions implements backend.Backend.
func (s *Store) ReferencingVersions(ctx context.Context, target ref.Address) ([]backend.VersionRecord, error) {
	statement := versionSelect + `
	JOIN version_refs r ON r.workspace = v.workspace AND r.object = v.object AND r.version = v.version
	WHERE r.target_workspace = ? AND r.target_object = ? AND r.target_version = ?
		AND v.version = o.version_count AND o.deleted = 0
	ORDER BY v.workspace, v.object`
	var records []backend.VersionRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		return collectVersions(conn, statement,
			[]any{target.Workspace, target.Object, target.Version},
			func(record backend.VersionRecord) bool {
				records = append(records, record)
				return true
			})
	})
	return records, err
}

// loadVersion reads one version; version 0 selects the latest.
func loadVersion(conn *sqlite.Conn, workspace, object int64, version int) (backend.VersionRecord, error) {
	statement := versionSelect + " WHERE v.workspace = ? AND v.object = ? AND v.version = "
	args := []any{workspace, object}
	if version > 0 {
		statement += "?"
		args = append(args, version)
	} else {
		statement += "o.version_count"
	}
	var found *backend.VersionRecord
	err := collectVersions(conn, statement, args, func(record backend.VersionRecord) bool {
		found = &record
		return false
	})
	if err != nil {
		return backend.VersionRecord{}, err
	}
	if found == nil {
		return backend.VersionRecord{}, fmt.Errorf("version %s: %w",
			ref.Address{Workspace: workspace, Object: object, Version: version}, backend.ErrNotFound)
	}
	return *found, nil
}

func loadHistory(conn *sqlite.Conn, workspace, object int64) ([]backend.VersionRecord, error) {
	var records []backend.VersionRecord
	err := collectVersions(conn,
		versionSelect+" WHERE v.workspace = ? AND v.object = ? ORDER BY v.version",
		[]any{workspace, object},
		func(record backend.VersionRecord) bool {
			records = append(records, record)
			return true
		})
	return records, err
}

// collectVersions runs statement and hands each scanned row to visit
// until visit returns false.
func collectVersions(conn *sqlite.Conn, statement string, args []any, visit func(backend.VersionRecord) bool) error {
	var (
		scanErr error
		stopped bool
	)
	err := sqlitex.Execute(conn, statement, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if stopped {
				return nil
			}
			record, err := scanVersion(stmt)
			if err != nil {
				scanErr = err
				return err
			}
			if !visit(record) {
				stopped = true
			}
			return nil
		},
	})
	if scanErr != nil {
		return scanErr
	}
	if err != nil {
		return fmt.Errorf("reading versions: %w", err)
	}
	return nil
}

// scanVersion reads a row selected with versionSelect.
func scanVersion(stmt *sqlite.Stmt) (backend.VersionRecord, error) {
	address := ref.Address{
		Workspace: stmt.ColumnInt64(0),
		Object:    stmt.ColumnInt64(1),
		Version:   stmt.ColumnInt(2),
	}
	typeID, err := ref.NewTypeID(stmt.ColumnText(4), stmt.ColumnText(5), stmt.ColumnInt(6), stmt.ColumnInt(7))
	if err != nil {
		return backend.VersionRecord{}, fmt.Errorf("version %s: stored type: %w", address, err)
	}
	var checksum blobstore.Checksum
	if stmt.ColumnLen(8) != len(checksum) {
		return backend.VersionRecord{}, fmt.Errorf("version %s: stored checksum has %d bytes", address, stmt.ColumnLen(8))
	}
	stmt.ColumnBytes(8, checksum[:])

	record := backend.VersionRecord{
		Address:    address,
		ObjectName: stmt.ColumnText(3),
		Type:       typeID,
		Checksum:   checksum,
		Size:       stmt.ColumnInt64(9),
		Extract:    columnBlob(stmt, 13),
		Saved:      fromMillis(stmt.ColumnInt64(15)),
		Hidden:     stmt.ColumnInt(17) != 0,
		Deleted:    stmt.ColumnInt(18) != 0,
	}
	if record.Metadata, err = decodeMap(columnBlob(stmt, 10)); err != nil {
		return backend.VersionRecord{}, fmt.Errorf("version %s: %w", address, err)
	}
	if data := columnBlob(stmt, 11); len(data) > 0 {
		if err := codec.Unmarshal(data, &record.Provenance); err != nil {
			return backend.VersionRecord{}, fmt.Errorf("version %s: decoding provenance: %w", address, err)
		}
	}
	if data := columnBlob(stmt, 12); len(data) > 0 {
		if err := codec.Unmarshal(data, &record.References); err != nil {
			return backend.VersionRecord{}, fmt.Errorf("version %s: decoding references: %w", address, err)
		}
	}
	if record.SavedBy, err = ref.ParseUser(stmt.ColumnText(14)); err != nil {
		return backend.VersionRecord{}, fmt.Errorf("version %s: stored saver: %w", address, err)
	}
	if text := stmt.ColumnText(16); text != "" {
		if record.CopiedFrom, err = ref.ParseAddress(text); err != nil {
			return backend.VersionRecord{}, fmt.Errorf("version %s: stored copy source: %w", address, err)
		}
	}
	return record, nil
}
