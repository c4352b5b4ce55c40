// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitebackend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/codec"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

const objectColumns = `workspace, id, name, hidden, deleted, version_count, modified`

// Object implements backend.Backend.
func (s *Store) Object(ctx context.Context, workspace, id int64) (backend.ObjectRecord, error) {
	var record backend.ObjectRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		record, err = loadObject(conn, "workspace = ? AND id = ?", workspace, id)
		return err
	})
	return record, err
}

// ObjectByName implements backend.Backend.
func (s *Store) ObjectByName(ctx context.Context, workspace int64, name string) (backend.ObjectRecord, error) {
	var record backend.ObjectRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		record, err = loadObject(conn, "workspace = ? AND name = ?", workspace, name)
		return err
	})
	return record, err
}

// ObjectNamesWithPrefix implements backend.Backend.
func (s *Store) ObjectNamesWithPrefix(ctx context.Context, workspace int64, prefix string) ([]string, error) {
	var names []string
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		// substr comparison avoids LIKE wildcard escaping; names may
		// contain underscores.
		err := sqlitex.Execute(conn,
			`SELECT name FROM objects
			WHERE workspace = ? AND substr(name, 1, ?) = ?
			ORDER BY name`,
			&sqlitex.ExecOptions{
				Args: []any{workspace, len(prefix), prefix},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					names = append(names, stmt.ColumnText(0))
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("listing object names in workspace %d: %w", workspace, err)
		}
		return nil
	})
	return names, err
}

// RenameObject implements backend.Backend.
func (s *Store) RenameObject(ctx context.Context, workspace, id int64, name string, modified time.Time) (backend.ObjectRecord, error) {
	var record backend.ObjectRecord
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		if _, err := loadObject(conn, "workspace = ? AND id = ?", workspace, id); err != nil {
			return err
		}
		err := sqlitex.Execute(conn,
			`UPDATE objects SET name = ?, modified = ? WHERE workspace = ? AND id = ?`,
			&sqlitex.ExecOptions{Args: []any{name, millis(modified), workspace, id}})
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("object %s in workspace %d: %w", name, workspace, backend.ErrNameInUse)
			}
			return fmt.Errorf("renaming object %d/%d: %w", workspace, id, err)
		}
		if err := touchWorkspace(conn, workspace, modified); err != nil {
			return err
		}
		record, err = loadObject(conn, "workspace = ? AND id = ?", workspace, id)
		return err
	})
	return record, err
}

// SetObjectsHidden implements backend.Backend.
func (s *Store) SetObjectsHidden(ctx context.Context, objects backend.ObjectSet, hidden bool, modified time.Time) error {
	return s.setObjectFlag(ctx, "hidden", objects, hidden, modified)
}

// SetObjectsDeleted implements backend.Backend.
func (s *Store) SetObjectsDeleted(ctx context.Context, objects backend.ObjectSet, deleted bool, modified time.Time) error {
	return s.setObjectFlag(ctx, "deleted", objects, deleted, modified)
}

// setObjectFlag updates one boolean column. column is a fixed
// identifier, never caller input.
func (s *Store) setObjectFlag(ctx context.Context, column string, objects backend.ObjectSet, value bool, modified time.Time) error {
	workspaces := objects.Workspaces()
	if len(workspaces) == 0 {
		return nil
	}
	return s.write(ctx, func(conn *sqlite.Conn) error {
		for _, workspace := range workspaces {
			ids := sortedIDs(objects[workspace])
			if len(ids) == 0 {
				continue
			}
			for _, id := range ids {
				var found bool
				err := sqlitex.Execute(conn,
					"UPDATE objects SET "+column+" = ?, modified = ? WHERE workspace = ? AND id = ? RETURNING id",
					&sqlitex.ExecOptions{
						Args: []any{boolInt(value), millis(modified), workspace, id},
						ResultFunc: func(*sqlite.Stmt) error {
							found = true
							return nil
						},
					})
				if err != nil {
					return fmt.Errorf("setting %s on object %d/%d: %w", column, workspace, id, err)
				}
				if !found {
					return fmt.Errorf("object %d/%d: %w", workspace, id, backend.ErrNotFound)
				}
			}
			if err := touchWorkspace(conn, workspace, modified); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveVersions implements backend.Backend.
func (s *Store) SaveVersions(ctx context.Context, workspace int64, versions []backend.NewVersion, modified time.Time) ([]backend.VersionRecord, error) {
	records := make([]backend.VersionRecord, 0, len(versions))
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		records = records[:0]
		if _, err := loadWorkspace(conn, workspace); err != nil {
			return err
		}
		for i, version := range versions {
			object, err := resolveTarget(conn, workspace, version.ObjectID, version.Name, version.CreateOnly, version.Hidden, modified)
			if err != nil {
				return fmt.Errorf("object #%d: %w", i+1, err)
			}
			record, err := appendVersion(conn, object, version, modified)
			if err != nil {
				return fmt.Errorf("object #%d: %w", i+1, err)
			}
			records = append(records, record)
		}
		return touchWorkspace(conn, workspace, modified)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CopyVersions implements backend.Backend.
func (s *Store) CopyVersions(ctx context.Context, request backend.CopyRequest) ([]backend.VersionRecord, error) {
	var records []backend.VersionRecord
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		records = nil
		source, err := loadObject(conn, "workspace = ? AND id = ?", request.SourceWorkspace, request.SourceObject)
		if err != nil {
			return err
		}
		var sourceVersions []backend.VersionRecord
		if request.Version > 0 {
			version, err := loadVersion(conn, request.SourceWorkspace, request.SourceObject, request.Version)
			if err != nil {
				return err
			}
			sourceVersions = []backend.VersionRecord{version}
		} else {
			sourceVersions, err = loadHistory(conn, request.SourceWorkspace, request.SourceObject)
			if err != nil {
				return err
			}
		}
		if _, err := loadWorkspace(conn, request.TargetWorkspace); err != nil {
			return err
		}
		target, err := resolveTarget(conn, request.TargetWorkspace, request.TargetObjectID, request.TargetName, false, source.Hidden, request.Modified)
		if err != nil {
			return err
		}
		for _, version := range sourceVersions {
			record, err := appendVersion(conn, target, backend.NewVersion{
				Type:       version.Type,
				Checksum:   version.Checksum,
				Size:       version.Size,
				Metadata:   version.Metadata,
				Provenance: version.Provenance,
				References: version.References,
				Extract:    version.Extract,
				SavedBy:    version.SavedBy,
				Saved:      version.Saved,
				CopiedFrom: version.Address,
			}, request.Modified)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return touchWorkspace(conn, request.TargetWorkspace, request.Modified)
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// resolveTarget finds or creates the object a new version goes to.
func resolveTarget(conn *sqlite.Conn, workspace, id int64, name string, createOnly, hidden bool, modified time.Time) (backend.ObjectRecord, error) {
	if id > 0 {
		return loadObject(conn, "workspace = ? AND id = ?", workspace, id)
	}
	existing, err := loadObject(conn, "workspace = ? AND name = ?", workspace, name)
	if err == nil {
		if createOnly {
			return backend.ObjectRecord{}, fmt.Errorf("object %s: %w", name, backend.ErrNameInUse)
		}
		return existing, nil
	}
	if !isNotFound(err) {
		return backend.ObjectRecord{}, err
	}

	var newID int64
	err = sqlitex.Execute(conn,
		`UPDATE workspaces SET object_counter = object_counter + 1 WHERE id = ?
		RETURNING object_counter`,
		&sqlitex.ExecOptions{
			Args: []any{workspace},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				newID = stmt.ColumnInt64(0)
				return nil
			},
		})
	if err != nil {
		return backend.ObjectRecord{}, fmt.Errorf("allocating object id in workspace %d: %w", workspace, err)
	}
	if newID == 0 {
		return backend.ObjectRecord{}, fmt.Errorf("workspace %d: %w", workspace, backend.ErrNotFound)
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO objects (workspace, id, name, hidden, deleted, version_count, modified)
		VALUES (?, ?, ?, ?, 0, 0, ?)`,
		&sqlitex.ExecOptions{Args: []any{workspace, newID, name, boolInt(hidden), millis(modified)}})
	if err != nil {
		if isUniqueViolation(err) {
			return backend.ObjectRecord{}, fmt.Errorf("object %s: %w", name, backend.ErrNameInUse)
		}
		return backend.ObjectRecord{}, fmt.Errorf("creating object %s: %w", name, err)
	}
	return backend.ObjectRecord{
		Workspace: workspace,
		ID:        newID,
		Name:      name,
		Hidden:    hidden,
		Modified:  modified,
	}, nil
}

// appendVersion allocates the next version number on object,
// undeleting it, and writes the version row and its reference edges.
func appendVersion(conn *sqlite.Conn, object backend.ObjectRecord, version backend.NewVersion, modified time.Time) (backend.VersionRecord, error) {
	var (
		number int
		name   string
		hidden bool
	)
	err := sqlitex.Execute(conn,
		`UPDATE objects SET version_count = version_count + 1, deleted = 0, modified = ?
		WHERE workspace = ? AND id = ?
		RETURNING version_count, name, hidden`,
		&sqlitex.ExecOptions{
			Args: []any{millis(modified), object.Workspace, object.ID},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				number = stmt.ColumnInt(0)
				name = stmt.ColumnText(1)
				hidden = stmt.ColumnInt(2) != 0
				return nil
			},
		})
	if err != nil {
		return backend.VersionRecord{}, fmt.Errorf("allocating version of object %d/%d: %w", object.Workspace, object.ID, err)
	}
	if number == 0 {
		return backend.VersionRecord{}, fmt.Errorf("object %d/%d: %w", object.Workspace, object.ID, backend.ErrNotFound)
	}

	metadata, err := encodeMap(version.Metadata)
	if err != nil {
		return backend.VersionRecord{}, err
	}
	provenance, err := codec.Marshal(version.Provenance)
	if err != nil {
		return backend.VersionRecord{}, fmt.Errorf("encoding provenance: %w", err)
	}
	var references []byte
	if len(version.References) > 0 {
		references, err = codec.Marshal(version.References)
		if err != nil {
			return backend.VersionRecord{}, fmt.Errorf("encoding references: %w", err)
		}
	}
	major, _ := version.Type.Major()
	minor, _ := version.Type.Minor()
	copiedFrom := ""
	if !version.CopiedFrom.IsZero() {
		copiedFrom = version.CopiedFrom.String()
	}
	address := ref.Address{Workspace: object.Workspace, Object: object.ID, Version: number}

	err = sqlitex.Execute(conn,
		`INSERT INTO versions (workspace, object, version, type_module, type_name,
			type_major, type_minor, checksum, size, metadata, provenance, refs,
			extract, saved_by, saved, copied_from)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			address.Workspace,
			address.Object,
			address.Version,
			version.Type.Module(),
			version.Type.Name(),
			major,
			minor,
			version.Checksum[:],
			version.Size,
			blobBytes(metadata),
			provenance,
			blobBytes(references),
			blobBytes(version.Extract),
			version.SavedBy.String(),
			millis(version.Saved),
			copiedFrom,
		}})
	if err != nil {
		return backend.VersionRecord{}, fmt.Errorf("inserting version %s: %w", address, err)
	}
	for _, target := range version.References {
		err = sqlitex.Execute(conn,
			`INSERT OR IGNORE INTO version_refs (workspace, object, version,
				target_workspace, target_object, target_version)
			VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				address.Workspace, address.Object, address.Version,
				target.Workspace, target.Object, target.Version,
			}})
		if err != nil {
			return backend.VersionRecord{}, fmt.Errorf("inserting reference %s -> %s: %w", address, target, err)
		}
	}

	stored := map[string]string{}
	for key, value := range version.Metadata {
		stored[key] = value
	}
	return backend.VersionRecord{
		Address:    address,
		ObjectName: name,
		Type:       version.Type,
		Checksum:   version.Checksum,
		Size:       version.Size,
		Metadata:   stored,
		Provenance: version.Provenance,
		References: version.References,
		Extract:    version.Extract,
		SavedBy:    version.SavedBy,
		Saved:      fromMillis(millis(version.Saved)),
		CopiedFrom: version.CopiedFrom,
		Hidden:     hidden,
	}, nil
}

// loadObject reads one object row. where is a fixed condition with
// placeholders for args.
func loadObject(conn *sqlite.Conn, where string, args ...any) (backend.ObjectRecord, error) {
	var (
		record backend.ObjectRecord
		found  bool
	)
	err := sqlitex.Execute(conn,
		"SELECT "+objectColumns+" FROM objects WHERE "+where,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record = backend.ObjectRecord{
					Workspace: stmt.ColumnInt64(0),
					ID:        stmt.ColumnInt64(1),
					Name:      stmt.ColumnText(2),
					Hidden:    stmt.ColumnInt(3) != 0,
					Deleted:   stmt.ColumnInt(4) != 0,
					Versions:  stmt.ColumnInt(5),
					Modified:  fromMillis(stmt.ColumnInt64(6)),
				}
				found = true
				return nil
			},
		})
	if err != nil {
		return backend.ObjectRecord{}, fmt.Errorf("reading object: %w", err)
	}
	if !found {
		return backend.ObjectRecord{}, fmt.Errorf("object %s: %w", describeArgs(args), backend.ErrNotFound)
	}
	return record, nil
}

func describeArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, "/")
}
