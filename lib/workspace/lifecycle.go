// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/governor"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/resolve"
)

// CreateParams describes a new workspace.
type CreateParams struct {
	Name        string
	Description string
	Metadata    map[string]string
	GlobalRead  bool
}

// CreateWorkspace creates a workspace owned by the caller.
func (s *Service) CreateWorkspace(ctx context.Context, caller Caller, params CreateParams) (WorkspaceInformation, error) {
	if err := s.checkCreate(caller, params.Name, params.Metadata); err != nil {
		return WorkspaceInformation{}, err
	}
	now := s.now()
	record, err := s.backend.CreateWorkspace(ctx, newWorkspaceRecord(caller, params, now))
	if err != nil {
		return WorkspaceInformation{}, s.workspaceNameError(err, params.Name, "creating workspace")
	}
	info := workspaceInformation(record, caller)
	s.logger.Info("workspace created",
		"workspace", record.ID,
		"name", record.Name,
		"owner", record.ACL.Owner.String(),
	)
	s.notifyCreated(info)
	return info, nil
}

// CloneParams describes a clone. The new workspace takes the name,
// description, metadata, and global flag from the params, never from
// the source.
type CloneParams struct {
	Source ref.WorkspaceLocator
	CreateParams

	// Exclude names source objects that are not copied.
	Exclude []ref.ObjectLocator
}

// CloneWorkspace creates a workspace holding the full history of every
// non-deleted object of a source the caller can read. Object ids are
// preserved.
func (s *Service) CloneWorkspace(ctx context.Context, caller Caller, params CloneParams) (WorkspaceInformation, error) {
	source, sourceRecord, err := s.workspace(ctx, caller, params.Source, readAccess, false)
	if err != nil {
		return WorkspaceInformation{}, err
	}
	if err := s.checkCreate(caller, params.Name, params.Metadata); err != nil {
		return WorkspaceInformation{}, err
	}
	exclude := make([]int64, 0, len(params.Exclude))
	for _, locator := range params.Exclude {
		if _, ok := locator.Version(); ok {
			return WorkspaceInformation{}, fault.Inputf("Excluded object %s may not specify a version", locator)
		}
		_, object, err := s.resolver.Object(ctx, source, locator, resolve.Options{AllowDeleted: true})
		if err != nil {
			return WorkspaceInformation{}, err
		}
		exclude = append(exclude, object.ID)
	}

	now := s.now()
	record, err := s.backend.CloneWorkspace(ctx, sourceRecord.ID, newWorkspaceRecord(caller, params.CreateParams, now), exclude)
	if err != nil {
		return WorkspaceInformation{}, s.workspaceNameError(err, params.Name, "cloning workspace %s", source.Label())
	}
	info := workspaceInformation(record, caller)
	s.logger.Info("workspace cloned",
		"workspace", record.ID,
		"name", record.Name,
		"source", sourceRecord.ID,
		"excluded", len(exclude),
	)
	s.notifyCloned(info, sourceRecord.ID)
	return info, nil
}

func newWorkspaceRecord(caller Caller, params CreateParams, now time.Time) backend.WorkspaceRecord {
	return backend.WorkspaceRecord{
		Name:        params.Name,
		Owner:       caller.User,
		Description: params.Description,
		Metadata:    params.Metadata,
		Created:     now,
		Modified:    now,
		ACL: permission.ACL{
			Owner:      caller.User,
			GlobalRead: params.GlobalRead,
		},
	}
}

func (s *Service) checkCreate(caller Caller, name string, metadata map[string]string) error {
	if err := s.checkAdmin(caller); err != nil {
		return err
	}
	if caller.User.IsZero() {
		return fault.Authorizationf("Anonymous users may not create workspaces")
	}
	if err := ref.ValidateWorkspaceName(name, caller.User, caller.AsAdmin); err != nil {
		return err
	}
	return s.checkWorkspaceMetadata(metadata)
}

func (s *Service) checkWorkspaceMetadata(metadata map[string]string) error {
	for key := range metadata {
		if key == "" {
			return fault.Inputf("Metadata keys may not be empty")
		}
	}
	if size := governor.MetadataSize(metadata); size > s.limits.MetadataBytes {
		return fault.Resourcef("Workspace metadata size %d exceeds the limit of %d bytes", size, s.limits.MetadataBytes)
	}
	return nil
}

func (s *Service) workspaceNameError(err error, name, format string, args ...any) error {
	if errors.Is(err, backend.ErrNameInUse) {
		return fault.Inputf("Workspace name %s is already in use", name)
	}
	return internal(err, format, args...)
}

// GetWorkspaceInfo returns a workspace the caller can read.
func (s *Service) GetWorkspaceInfo(ctx context.Context, caller Caller, locator ref.WorkspaceLocator) (WorkspaceInformation, error) {
	_, record, err := s.workspace(ctx, caller, locator, readAccess, false)
	if err != nil {
		return WorkspaceInformation{}, err
	}
	return workspaceInformation(record, caller), nil
}

// GetWorkspaceDescription returns the full, untruncated description.
func (s *Service) GetWorkspaceDescription(ctx context.Context, caller Caller, locator ref.WorkspaceLocator) (string, error) {
	_, record, err := s.workspace(ctx, caller, locator, readAccess, false)
	if err != nil {
		return "", err
	}
	return record.Description, nil
}

// update applies a change to a workspace the caller already passed
// checks on.
func (s *Service) update(ctx context.Context, workspace resolve.Workspace, update backend.WorkspaceUpdate) (backend.WorkspaceRecord, error) {
	update.Modified = s.now()
	record, err := s.backend.UpdateWorkspace(ctx, workspace.ID(), update)
	if err != nil {
		name := workspace.Name()
		if update.Name != nil {
			name = *update.Name
		}
		return backend.WorkspaceRecord{}, s.workspaceNameError(err, name, "updating workspace %s", workspace.Label())
	}
	return record, nil
}

// RenameWorkspace renames a workspace. Requires admin permission.
func (s *Service) RenameWorkspace(ctx context.Context, caller Caller, locator ref.WorkspaceLocator, name string) (WorkspaceInformation, error) {
	workspace, record, err := s.workspace(ctx, caller, locator, access{required: permission.Admin, action: "rename", mutating: true}, false)
	if err != nil {
		return WorkspaceInformation{}, err
	}
	if err := ref.ValidateWorkspaceName(name, caller.User, caller.AsAdmin); err != nil {
		return WorkspaceInformation{}, err
	}
	if name == record.Name {
		return WorkspaceInformation{}, fault.Inputf("Workspace is already named %s", name)
	}
	record, err = s.update(ctx, workspace, backend.WorkspaceUpdate{Name: &name})
	if err != nil {
		return WorkspaceInformation{}, err
	}
	s.logger.Info("workspace renamed", "workspace", record.ID, "name", name)
	return workspaceInformation(record, caller), nil
}

// SetWorkspaceDescription replaces the description. Requires admin
// permission.
func (s *Service) SetWorkspaceDescription(ctx context.Context, caller Caller, locator ref.WorkspaceLocator, description string) error {
	workspace, _, err := s.workspace(ctx, caller, locator, access{required: permission.Admin, action: "set the description of", mutating: true}, false)
	if err != nil {
		return err
	}
	_, err = s.update(ctx, workspace, backend.WorkspaceUpdate{Description: &description})
	return err
}

// SetWorkspaceMetadata sets and removes metadata keys. A key may not
// be both set and removed. The resulting metadata must fit the
// metadata size limit. Requires admin permission.
func (s *Service) SetWorkspaceMetadata(ctx context.Context, caller Caller, locator ref.WorkspaceLocator, set map[string]string, remove []string) (WorkspaceInformation, error) {
	if len(set) == 0 && len(remove) == 0 {
		return WorkspaceInformation{}, fault.Inputf("No metadata changes were requested")
	}
	for _, key := range remove {
		if _, ok := set[key]; ok {
			return WorkspaceInformation{}, fault.Inputf("Metadata key %s cannot be both set and removed", key)
		}
	}
	workspace, record, err := s.workspace(ctx, caller, locator, access{required: permission.Admin, action: "alter metadata for", mutating: true}, false)
	if err != nil {
		return WorkspaceInformation{}, err
	}
	merged := make(map[string]string, len(record.Metadata)+len(set))
	for key, value := range record.Metadata {
		merged[key] = value
	}
	for key, value := range set {
		merged[key] = value
	}
	for _, key := range remove {
		delete(merged, key)
	}
	if err := s.checkWorkspaceMetadata(merged); err != nil {
		return WorkspaceInformation{}, err
	}
	record, err = s.update(ctx, workspace, backend.WorkspaceUpdate{SetMetadata: set, RemoveMetadata: remove})
	if err != nil {
		return WorkspaceInformation{}, err
	}
	info := workspaceInformation(record, caller)
	s.notifyMetadataSet(info)
	return info, nil
}

// LockWorkspace makes a workspace permanently immutable. Requires
// admin permission. Locking twice fails.
func (s *Service) LockWorkspace(ctx context.Context, caller Caller, locator ref.WorkspaceLocator) (WorkspaceInformation, error) {
	workspace, _, err := s.workspace(ctx, caller, locator, access{required: permission.Admin, action: "lock", mutating: true}, false)
	if err != nil {
		return WorkspaceInformation{}, err
	}
	locked := true
	record, err := s.update(ctx, workspace, backend.WorkspaceUpdate{Locked: &locked})
	if err != nil {
		return WorkspaceInformation{}, err
	}
	s.logger.Info("workspace locked", "workspace", record.ID)
	return workspaceInformation(record, caller), nil
}

// DeleteWorkspace marks a workspace deleted. Only the owner may delete.
func (s *Service) DeleteWorkspace(ctx context.Context, caller Caller, locator ref.WorkspaceLocator) error {
	workspace, _, err := s.workspace(ctx, caller, locator, ownerAccess, false)
	if err != nil {
		return err
	}
	deleted := true
	if _, err := s.update(ctx, workspace, backend.WorkspaceUpdate{Deleted: &deleted}); err != nil {
		return err
	}
	s.logger.Info("workspace deleted", "workspace", workspace.ID())
	return nil
}

// UndeleteWorkspace restores a deleted workspace. It fails if another
// live workspace has taken the name in the meantime.
func (s *Service) UndeleteWorkspace(ctx context.Context, caller Caller, locator ref.WorkspaceLocator) (WorkspaceInformation, error) {
	workspace, record, err := s.workspace(ctx, caller, locator, access{required: permission.Owner, action: "undelete", mutating: true}, true)
	if err != nil {
		return WorkspaceInformation{}, err
	}
	if !record.Deleted {
		return workspaceInformation(record, caller), nil
	}
	deleted := false
	record, err = s.update(ctx, workspace, backend.WorkspaceUpdate{Deleted: &deleted})
	if err != nil {
		return WorkspaceInformation{}, err
	}
	s.logger.Info("workspace undeleted", "workspace", record.ID)
	return workspaceInformation(record, caller), nil
}

// ListWorkspacesParams filters ListWorkspaces.
type ListWorkspacesParams struct {
	Owners []ref.User

	// MinPermission is the lowest effective level listed. Zero means
	// read.
	MinPermission permission.Permission

	// ExcludeGlobal drops workspaces readable only through the global
	// flag.
	ExcludeGlobal bool

	// ShowDeleted adds deleted workspaces the caller owns.
	ShowDeleted bool

	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	Metadata       map[string]string
}

// ListWorkspaces lists workspaces visible to the caller, by id.
func (s *Service) ListWorkspaces(ctx context.Context, caller Caller, params ListWorkspacesParams) ([]WorkspaceInformation, error) {
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	minimum := params.MinPermission
	if minimum < permission.Read {
		minimum = permission.Read
	}
	filter := backend.WorkspaceFilter{
		Owners:         params.Owners,
		ModifiedAfter:  params.ModifiedAfter,
		ModifiedBefore: params.ModifiedBefore,
		Metadata:       params.Metadata,
	}
	records, err := s.backend.ListWorkspaces(ctx, filter)
	if err != nil {
		return nil, internal(err, "listing workspaces")
	}
	if params.ShowDeleted && !caller.User.IsZero() {
		filter.Deleted = true
		deleted, err := s.backend.ListWorkspaces(ctx, filter)
		if err != nil {
			return nil, internal(err, "listing deleted workspaces")
		}
		for _, record := range deleted {
			if record.ACL.Owner == caller.User {
				records = append(records, record)
			}
		}
		slices.SortFunc(records, func(a, b backend.WorkspaceRecord) int {
			return cmp.Compare(a.ID, b.ID)
		})
	}

	var listed []WorkspaceInformation
	for _, record := range records {
		if !caller.AsAdmin {
			if record.ACL.Effective(caller.User) < minimum {
				continue
			}
			if params.ExcludeGlobal && record.ACL.ReadableOnlyGlobally(caller.User) {
				continue
			}
		}
		listed = append(listed, workspaceInformation(record, caller))
	}
	return listed, nil
}
