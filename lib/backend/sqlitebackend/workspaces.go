// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitebackend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

const workspaceColumns = `id, name, owner, description, metadata, created, modified,
	deleted, locked, global_read, object_counter`

// CreateWorkspace implements backend.Backend. The record's ID is
// ignored and assigned.
func (s *Store) CreateWorkspace(ctx context.Context, record backend.WorkspaceRecord) (backend.WorkspaceRecord, error) {
	var created backend.WorkspaceRecord
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		var err error
		created, err = insertWorkspace(conn, record, 0)
		return err
	})
	if err != nil {
		return backend.WorkspaceRecord{}, err
	}
	s.logger.Debug("workspace created", "id", created.ID, "name", created.Name, "owner", created.Owner)
	return created, nil
}

// insertWorkspace writes a workspace row and its grants. counter seeds
// the object id counter.
func insertWorkspace(conn *sqlite.Conn, record backend.WorkspaceRecord, counter int64) (backend.WorkspaceRecord, error) {
	metadata, err := encodeMap(record.Metadata)
	if err != nil {
		return backend.WorkspaceRecord{}, err
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO workspaces (name, owner, description, metadata, created, modified,
			deleted, locked, global_read, object_counter)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			record.Name,
			record.Owner.String(),
			record.Description,
			blobBytes(metadata),
			millis(record.Created),
			millis(record.Modified),
			boolInt(record.Locked),
			boolInt(record.ACL.GlobalRead),
			counter,
		}})
	if err != nil {
		if isUniqueViolation(err) {
			return backend.WorkspaceRecord{}, fmt.Errorf("workspace %s: %w", record.Name, backend.ErrNameInUse)
		}
		return backend.WorkspaceRecord{}, fmt.Errorf("inserting workspace: %w", err)
	}
	id := conn.LastInsertRowID()
	for _, grantee := range record.ACL.SortedGrantees() {
		if err := writeGrant(conn, id, grantee, record.ACL.Grants[grantee]); err != nil {
			return backend.WorkspaceRecord{}, err
		}
	}
	return loadWorkspace(conn, id)
}

// CloneWorkspace implements backend.Backend.
func (s *Store) CloneWorkspace(ctx context.Context, source int64, record backend.WorkspaceRecord, exclude []int64) (backend.WorkspaceRecord, error) {
	var created backend.WorkspaceRecord
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		original, err := loadWorkspace(conn, source)
		if err != nil {
			return err
		}
		created, err = insertWorkspace(conn, record, original.MaxObjectID)
		if err != nil {
			return err
		}

		filter := ""
		args := []any{created.ID, millis(record.Modified), source}
		if len(exclude) > 0 {
			filter = " AND id NOT IN (" + placeholders(len(exclude)) + ")"
			for _, id := range exclude {
				args = append(args, id)
			}
		}
		err = sqlitex.Execute(conn,
			`INSERT INTO objects (workspace, id, name, hidden, deleted, version_count, modified)
			SELECT ?, id, name, hidden, 0, version_count, ?
			FROM objects WHERE workspace = ? AND deleted = 0`+filter,
			&sqlitex.ExecOptions{Args: args})
		if err != nil {
			return fmt.Errorf("cloning objects: %w", err)
		}

		// Versions and reference edges follow the objects just copied.
		err = sqlitex.Execute(conn,
			`INSERT INTO versions (workspace, object, version, type_module, type_name,
				type_major, type_minor, checksum, size, metadata, provenance, refs,
				extract, saved_by, saved, copied_from)
			SELECT c.workspace, v.object, v.version, v.type_module, v.type_name,
				v.type_major, v.type_minor, v.checksum, v.size, v.metadata, v.provenance,
				v.refs, v.extract, v.saved_by, v.saved,
				v.workspace || '/' || v.object || '/' || v.version
			FROM versions v
			JOIN objects c ON c.workspace = ? AND c.id = v.object
			WHERE v.workspace = ?`,
			&sqlitex.ExecOptions{Args: []any{created.ID, source}})
		if err != nil {
			return fmt.Errorf("cloning versions: %w", err)
		}
		err = sqlitex.Execute(conn,
			`INSERT INTO version_refs (workspace, object, version, target_workspace,
				target_object, target_version)
			SELECT c.workspace, r.object, r.version, r.target_workspace,
				r.target_object, r.target_version
			FROM version_refs r
			JOIN objects c ON c.workspace = ? AND c.id = r.object
			WHERE r.workspace = ?`,
			&sqlitex.ExecOptions{Args: []any{created.ID, source}})
		if err != nil {
			return fmt.Errorf("cloning references: %w", err)
		}
		return nil
	})
	if err != nil {
		return backend.WorkspaceRecord{}, err
	}
	s.logger.Debug("workspace cloned", "source", source, "id", created.ID, "name", created.Name)
	return created, nil
}

// Workspace implements backend.Backend.
func (s *Store) Workspace(ctx context.Context, id int64) (backend.WorkspaceRecord, error) {
	var record backend.WorkspaceRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var err error
		record, err = loadWorkspace(conn, id)
		return err
	})
	return record, err
}

// WorkspaceByName implements backend.Backend.
func (s *Store) WorkspaceByName(ctx context.Context, name string) (backend.WorkspaceRecord, error) {
	var record backend.WorkspaceRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		var id int64
		err := sqlitex.Execute(conn,
			`SELECT id FROM workspaces WHERE name = ?
			ORDER BY deleted ASC, modified DESC, id DESC LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []any{name},
				ResultFunc: func(stmt *sqlite.Stmt) error {
					id = stmt.ColumnInt64(0)
					return nil
				},
			})
		if err != nil {
			return fmt.Errorf("looking up workspace %s: %w", name, err)
		}
		if id == 0 {
			return fmt.Errorf("workspace %s: %w", name, backend.ErrNotFound)
		}
		record, err = loadWorkspace(conn, id)
		return err
	})
	return record, err
}

// UpdateWorkspace implements backend.Backend.
func (s *Store) UpdateWorkspace(ctx context.Context, id int64, update backend.WorkspaceUpdate) (backend.WorkspaceRecord, error) {
	var record backend.WorkspaceRecord
	err := s.write(ctx, func(conn *sqlite.Conn) error {
		current, err := loadWorkspace(conn, id)
		if err != nil {
			return err
		}
		if update.Name != nil {
			current.Name = *update.Name
		}
		if update.Description != nil {
			current.Description = *update.Description
		}
		for key, value := range update.SetMetadata {
			current.Metadata[key] = value
		}
		for _, key := range update.RemoveMetadata {
			delete(current.Metadata, key)
		}
		if update.Locked != nil {
			current.Locked = *update.Locked
		}
		if update.Deleted != nil {
			current.Deleted = *update.Deleted
		}
		if update.GlobalRead != nil {
			current.ACL.GlobalRead = *update.GlobalRead
		}
		metadata, err := encodeMap(current.Metadata)
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn,
			`UPDATE workspaces SET name = ?, description = ?, metadata = ?, modified = ?,
				deleted = ?, locked = ?, global_read = ?
			WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{
				current.Name,
				current.Description,
				blobBytes(metadata),
				millis(update.Modified),
				boolInt(current.Deleted),
				boolInt(current.Locked),
				boolInt(current.ACL.GlobalRead),
				id,
			}})
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("workspace %s: %w", current.Name, backend.ErrNameInUse)
			}
			return fmt.Errorf("updating workspace %d: %w", id, err)
		}
		record, err = loadWorkspace(conn, id)
		return err
	})
	return record, err
}

// ListWorkspaces implements backend.Backend. Results are ordered by id.
func (s *Store) ListWorkspaces(ctx context.Context, filter backend.WorkspaceFilter) ([]backend.WorkspaceRecord, error) {
	conditions := []string{"deleted = ?"}
	args := []any{boolInt(filter.Deleted)}
	if len(filter.Owners) > 0 {
		conditions = append(conditions, "owner IN ("+placeholders(len(filter.Owners))+")")
		for _, owner := range filter.Owners {
			args = append(args, owner.String())
		}
	}
	if !filter.ModifiedAfter.IsZero() {
		conditions = append(conditions, "modified > ?")
		args = append(args, millis(filter.ModifiedAfter))
	}
	if !filter.ModifiedBefore.IsZero() {
		conditions = append(conditions, "modified < ?")
		args = append(args, millis(filter.ModifiedBefore))
	}

	var records []backend.WorkspaceRecord
	err := s.read(ctx, func(conn *sqlite.Conn) error {
		query := "SELECT " + workspaceColumns + " FROM workspaces WHERE " +
			strings.Join(conditions, " AND ") + " ORDER BY id"
		var scanErr error
		err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanWorkspace(stmt)
				if err != nil {
					scanErr = err
					return err
				}
				if matchesMetadata(record.Metadata, filter.Metadata) {
					records = append(records, record)
				}
				return nil
			},
		})
		if scanErr != nil {
			return scanErr
		}
		if err != nil {
			return fmt.Errorf("listing workspaces: %w", err)
		}
		for i := range records {
			grants, err := loadGrants(conn, records[i].ID)
			if err != nil {
				return err
			}
			records[i].ACL.Grants = grants
		}
		return nil
	})
	return records, err
}

// SetGrants implements backend.Backend.
func (s *Store) SetGrants(ctx context.Context, workspace int64, users []ref.User, level permission.Permission, modified time.Time) error {
	return s.write(ctx, func(conn *sqlite.Conn) error {
		if _, err := loadWorkspace(conn, workspace); err != nil {
			return err
		}
		for _, user := range users {
			if err := writeGrant(conn, workspace, user, level); err != nil {
				return err
			}
		}
		return touchWorkspace(conn, workspace, modified)
	})
}

func writeGrant(conn *sqlite.Conn, workspace int64, user ref.User, level permission.Permission) error {
	var err error
	if level == permission.None {
		err = sqlitex.Execute(conn,
			`DELETE FROM grants WHERE workspace = ? AND user = ?`,
			&sqlitex.ExecOptions{Args: []any{workspace, user.String()}})
	} else {
		err = sqlitex.Execute(conn,
			`INSERT INTO grants (workspace, user, level) VALUES (?, ?, ?)
			ON CONFLICT (workspace, user) DO UPDATE SET level = excluded.level`,
			&sqlitex.ExecOptions{Args: []any{workspace, user.String(), int64(level)}})
	}
	if err != nil {
		return fmt.Errorf("writing grant for %s on workspace %d: %w", user, workspace, err)
	}
	return nil
}

func touchWorkspace(conn *sqlite.Conn, workspace int64, modified time.Time) error {
	err := sqlitex.Execute(conn,
		`UPDATE workspaces SET modified = ? WHERE id = ?`,
		&sqlitex.ExecOptions{Args: []any{millis(modified), workspace}})
	if err != nil {
		return fmt.Errorf("updating workspace %d: %w", workspace, err)
	}
	return nil
}

// loadWorkspace reads one workspace row and its grants.
func loadWorkspace(conn *sqlite.Conn, id int64) (backend.WorkspaceRecord, error) {
	var (
		record  backend.WorkspaceRecord
		found   bool
		scanErr error
	)
	err := sqlitex.Execute(conn,
		"SELECT "+workspaceColumns+" FROM workspaces WHERE id = ?",
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, scanErr = scanWorkspace(stmt)
				found = true
				return scanErr
			},
		})
	if scanErr != nil {
		return backend.WorkspaceRecord{}, scanErr
	}
	if err != nil {
		return backend.WorkspaceRecord{}, fmt.Errorf("reading workspace %d: %w", id, err)
	}
	if !found {
		return backend.WorkspaceRecord{}, fmt.Errorf("workspace %d: %w", id, backend.ErrNotFound)
	}
	record.ACL.Grants, err = loadGrants(conn, id)
	if err != nil {
		return backend.WorkspaceRecord{}, err
	}
	return record, nil
}

func loadGrants(conn *sqlite.Conn, workspace int64) (map[ref.User]permission.Permission, error) {
	grants := map[ref.User]permission.Permission{}
	var scanErr error
	err := sqlitex.Execute(conn,
		`SELECT user, level FROM grants WHERE workspace = ?`,
		&sqlitex.ExecOptions{
			Args: []any{workspace},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				user, err := ref.ParseGrantee(stmt.ColumnText(0))
				if err != nil {
					scanErr = fmt.Errorf("workspace %d: stored grantee: %w", workspace, err)
					return scanErr
				}
				grants[user] = permission.Permission(stmt.ColumnInt(1))
				return nil
			},
		})
	if scanErr != nil {
		return nil, scanErr
	}
	if err != nil {
		return nil, fmt.Errorf("reading grants for workspace %d: %w", workspace, err)
	}
	return grants, nil
}

// scanWorkspace reads a row selected with workspaceColumns. Grants are
// loaded separately.
func scanWorkspace(stmt *sqlite.Stmt) (backend.WorkspaceRecord, error) {
	owner, err := ref.ParseUser(stmt.ColumnText(2))
	if err != nil {
		return backend.WorkspaceRecord{}, fmt.Errorf("stored workspace owner: %w", err)
	}
	metadata, err := decodeMap(columnBlob(stmt, 4))
	if err != nil {
		return backend.WorkspaceRecord{}, err
	}
	return backend.WorkspaceRecord{
		ID:          stmt.ColumnInt64(0),
		Name:        stmt.ColumnText(1),
		Owner:       owner,
		Description: stmt.ColumnText(3),
		Metadata:    metadata,
		Created:     fromMillis(stmt.ColumnInt64(5)),
		Modified:    fromMillis(stmt.ColumnInt64(6)),
		Deleted:     stmt.ColumnInt(7) != 0,
		Locked:      stmt.ColumnInt(8) != 0,
		ACL: permission.ACL{
			Owner:      owner,
			GlobalRead: stmt.ColumnInt(9) != 0,
		},
		MaxObjectID: stmt.ColumnInt64(10),
	}, nil
}

// sortedIDs returns a sorted copy with duplicates removed.
func sortedIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
