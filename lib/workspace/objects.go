// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/governor"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/resolve"
)

// inaccessible reclassifies a read denial as an inaccessible target,
// keeping the message.
func inaccessible(err error) error {
	if fault.KindOf(err) != fault.Authorization {
		return err
	}
	return &fault.Error{Kind: fault.Inaccessible, Message: err.Error(), Err: err}
}

// resolvedObject is one object identifier resolved and checked.
type resolvedObject struct {
	handle    resolve.Object
	workspace backend.WorkspaceRecord
	record    backend.ObjectRecord
	version   int
}

// object resolves identifier and checks need on its workspace. Errors
// are *resolve.ObjectError values naming the identifier.
func (s *Service) object(ctx context.Context, caller Caller, identifier ref.ObjectIdentifier, need access, allowDeleted bool) (resolvedObject, error) {
	workspace, record, err := s.workspace(ctx, caller, identifier.Workspace, need, allowDeleted)
	if err != nil {
		if !need.mutating {
			err = inaccessible(err)
		}
		return resolvedObject{}, resolve.NewObjectError(identifier, err)
	}
	handle, object, err := s.resolver.Object(ctx, workspace, identifier.Object, resolve.Options{AllowDeleted: allowDeleted})
	if err != nil {
		return resolvedObject{}, resolve.NewObjectError(identifier, err)
	}
	version, _ := identifier.Object.Version()
	if version > object.Versions {
		return resolvedObject{}, resolve.NewObjectError(identifier,
			fault.NotFoundf("No version %d of %s exists", version, handle.Label()))
	}
	return resolvedObject{handle: handle, workspace: record, record: object, version: version}, nil
}

// loadVersion returns the resolved object's requested version.
func (s *Service) loadVersion(ctx context.Context, identifier ref.ObjectIdentifier, target resolvedObject) (backend.VersionRecord, error) {
	record, err := s.backend.Version(ctx, target.workspace.ID, target.record.ID, target.version)
	if errors.Is(err, backend.ErrNotFound) {
		return backend.VersionRecord{}, resolve.NewObjectError(identifier,
			fault.NotFoundf("No version %d of %s exists", target.version, target.handle.Label()))
	}
	if err != nil {
		return backend.VersionRecord{}, internal(err, "loading %s", identifier)
	}
	return record, nil
}

// suppressible reports whether a best-effort call may return a nil
// entry for err instead of failing.
func suppressible(err error) bool {
	var objectErr *resolve.ObjectError
	return errors.As(err, &objectErr)
}

// ObjectSpecification selects one object version and, optionally,
// parts of its document.
type ObjectSpecification struct {
	Identifier ref.ObjectIdentifier

	// Paths are JSON pointers into the document. "*" matches every
	// element of an array or value of a map. Empty returns the whole
	// document.
	Paths []string

	// StrictPaths fails the object when a path selects nothing.
	StrictPaths bool
}

// GetParams is a batch read.
type GetParams struct {
	Objects []ObjectSpecification

	// IgnoreErrors returns a nil entry for each object that cannot be
	// read instead of failing the call. Size limit failures always
	// fail the call.
	IgnoreErrors bool

	// NoData omits documents, returning provenance and references only.
	NoData bool
}

// GetObjects returns object versions with their documents. The total
// returned document size is limited by the response budget.
func (s *Service) GetObjects(ctx context.Context, caller Caller, params GetParams) ([]*ObjectData, error) {
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	budget := s.limits.NewResponseBudget()
	results := make([]*ObjectData, len(params.Objects))
	for i, selection := range params.Objects {
		data, err := s.getObject(ctx, caller, selection, !params.NoData, budget, i+1)
		if err != nil {
			if params.IgnoreErrors && suppressible(err) {
				continue
			}
			return nil, err
		}
		results[i] = data
	}
	s.metrics.objectsRead.Add(float64(len(params.Objects)))
	return results, nil
}

// getObject loads one version. A whole document is charged to budget
// from its recorded size before the blob is opened; a sub-selection is
// charged once selected.
func (s *Service) getObject(ctx context.Context, caller Caller, selection ObjectSpecification, withData bool, budget *governor.ResponseBudget, position int) (*ObjectData, error) {
	target, err := s.object(ctx, caller, selection.Identifier, readAccess, false)
	if err != nil {
		return nil, err
	}
	version, err := s.loadVersion(ctx, selection.Identifier, target)
	if err != nil {
		return nil, err
	}
	data := &ObjectData{
		Info:       objectInformation(version, target.workspace.Name),
		Provenance: version.Provenance,
		References: version.References,
		Extract:    version.Extract,
	}
	if !version.CopiedFrom.IsZero() {
		if s.canRead(ctx, caller, version.CopiedFrom) {
			data.CopiedFrom = version.CopiedFrom
		} else {
			data.CopySourceInaccessible = true
		}
	}
	if !withData {
		return data, nil
	}
	if len(selection.Paths) == 0 {
		if err := budget.Add(position, version.Size); err != nil {
			return nil, err
		}
	}
	document, err := s.readDocument(ctx, version)
	if err != nil {
		return nil, err
	}
	if len(selection.Paths) > 0 {
		document, err = selectPaths(document, selection.Paths, selection.StrictPaths)
		if err != nil {
			return nil, resolve.NewObjectError(selection.Identifier, err)
		}
		if err := budget.Add(position, int64(len(document))); err != nil {
			return nil, err
		}
	}
	data.Data = document
	return data, nil
}

// readDocument returns the stored canonical bytes of a version.
func (s *Service) readDocument(ctx context.Context, version backend.VersionRecord) ([]byte, error) {
	blob, err := s.backend.OpenBlob(ctx, version.Checksum)
	if err != nil {
		return nil, internal(err, "opening document of %s", version.Address)
	}
	defer blob.Close()
	document, err := io.ReadAll(blob)
	if err != nil {
		return nil, internal(err, "reading document of %s", version.Address)
	}
	return document, nil
}

// selectPaths returns the canonical encoding of the parts of document
// the paths select.
func selectPaths(document []byte, paths []string, strict bool) ([]byte, error) {
	pointers := make([]docpath.Pointer, len(paths))
	for i, path := range paths {
		pointer, err := docpath.Parse(path)
		if err != nil {
			return nil, err
		}
		pointers[i] = pointer
	}
	decoder := json.NewDecoder(bytes.NewReader(document))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, internal(err, "decoding stored document")
	}
	selected, err := docpath.Select(doc, pointers, strict)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := governor.Canonicalize(selected, &out); err != nil {
		return nil, internal(err, "encoding selection")
	}
	return out.Bytes(), nil
}

// canRead reports whether the caller can still read the object at
// address: the workspace and object exist, neither is deleted, and the
// caller has read access.
func (s *Service) canRead(ctx context.Context, caller Caller, address ref.Address) bool {
	_, err := s.object(ctx, caller, address.Identifier(), readAccess, false)
	return err == nil
}

// GetObjectInfo returns information about object versions without
// their documents.
func (s *Service) GetObjectInfo(ctx context.Context, caller Caller, identifiers []ref.ObjectIdentifier, ignoreErrors bool) ([]*ObjectInformation, error) {
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	infos := make([]*ObjectInformation, len(identifiers))
	for i, identifier := range identifiers {
		target, err := s.object(ctx, caller, identifier, readAccess, false)
		var version backend.VersionRecord
		if err == nil {
			version, err = s.loadVersion(ctx, identifier, target)
		}
		if err != nil {
			if ignoreErrors && suppressible(err) {
				continue
			}
			return nil, err
		}
		info := objectInformation(version, target.workspace.Name)
		infos[i] = &info
	}
	return infos, nil
}

// GetObjectHistory returns every version of an object, oldest first.
// A version in the identifier is ignored.
func (s *Service) GetObjectHistory(ctx context.Context, caller Caller, identifier ref.ObjectIdentifier) ([]ObjectInformation, error) {
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	target, err := s.object(ctx, caller, identifier, readAccess, false)
	if err != nil {
		return nil, err
	}
	history, err := s.backend.History(ctx, target.workspace.ID, target.record.ID)
	if err != nil {
		return nil, internal(err, "loading history of %s", target.handle.Label())
	}
	infos := make([]ObjectInformation, len(history))
	for i, version := range history {
		infos[i] = objectInformation(version, target.workspace.Name)
	}
	return infos, nil
}

// ListObjectsParams filters ListObjects. At least one of Workspaces
// and Type is required.
type ListObjectsParams struct {
	Workspaces []ref.WorkspaceLocator

	// Type matches by prefix: "Genome.Assembly" matches every version,
	// "Genome.Assembly-1" every 1.x version.
	Type string

	// MinPermission is the lowest level the caller must hold on a
	// workspace for its objects to be listed. Zero means read.
	MinPermission permission.Permission

	SavedBy     []ref.User
	SavedAfter  time.Time
	SavedBefore time.Time
	Metadata    map[string]string

	ShowHidden    bool
	ShowDeleted   bool
	AllVersions   bool
	ExcludeGlobal bool

	// Limit caps the result; zero means unlimited.
	Limit int
}

// ListObjects lists object versions in save order.
func (s *Service) ListObjects(ctx context.Context, caller Caller, params ListObjectsParams) ([]ObjectInformation, error) {
	if len(params.Workspaces) == 0 && params.Type == "" {
		return nil, fault.Inputf("At least one filter must be specified: workspaces or type")
	}
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	minimum := params.MinPermission
	if minimum < permission.Read {
		minimum = permission.Read
	}
	query := backend.VersionQuery{
		SavedBy:     params.SavedBy,
		SavedAfter:  params.SavedAfter,
		SavedBefore: params.SavedBefore,
		Metadata:    params.Metadata,
		ShowHidden:  params.ShowHidden,
		ShowDeleted: params.ShowDeleted,
		AllVersions: params.AllVersions,
		Limit:       params.Limit,
	}
	if params.Type != "" {
		typeID, err := ref.ParseTypeID(params.Type)
		if err != nil {
			return nil, err
		}
		query.Type = typeID
	}

	names := map[int64]string{}
	listable := func(record backend.WorkspaceRecord) bool {
		if caller.AsAdmin {
			return true
		}
		if record.ACL.Effective(caller.User) < minimum {
			return false
		}
		return !params.ExcludeGlobal || !record.ACL.ReadableOnlyGlobally(caller.User)
	}
	if len(params.Workspaces) > 0 {
		need := access{required: minimum, action: "read"}
		for _, locator := range params.Workspaces {
			_, record, err := s.workspace(ctx, caller, locator, need, false)
			if err != nil {
				return nil, err
			}
			if !listable(record) {
				continue
			}
			if _, seen := names[record.ID]; !seen {
				query.Workspaces = append(query.Workspaces, record.ID)
			}
			names[record.ID] = record.Name
		}
		if len(query.Workspaces) == 0 {
			return nil, nil
		}
	} else {
		records, err := s.backend.ListWorkspaces(ctx, backend.WorkspaceFilter{})
		if err != nil {
			return nil, internal(err, "listing workspaces")
		}
		for _, record := range records {
			if listable(record) {
				query.Workspaces = append(query.Workspaces, record.ID)
				names[record.ID] = record.Name
			}
		}
		if len(query.Workspaces) == 0 {
			return nil, nil
		}
	}

	versions, err := s.backend.QueryVersions(ctx, query)
	if err != nil {
		return nil, internal(err, "listing objects")
	}
	infos := make([]ObjectInformation, len(versions))
	for i, version := range versions {
		infos[i] = objectInformation(version, names[version.Address.Workspace])
	}
	return infos, nil
}

// ListReferencingObjects returns the latest versions, in workspaces
// the caller can read, that reference the identified version.
func (s *Service) ListReferencingObjects(ctx context.Context, caller Caller, identifier ref.ObjectIdentifier) ([]ObjectInformation, error) {
	if err := s.checkAdmin(caller); err != nil {
		return nil, err
	}
	target, err := s.object(ctx, caller, identifier, readAccess, false)
	if err != nil {
		return nil, err
	}
	version, err := s.loadVersion(ctx, identifier, target)
	if err != nil {
		return nil, err
	}
	referencing, err := s.backend.ReferencingVersions(ctx, version.Address)
	if err != nil {
		return nil, internal(err, "listing objects referencing %s", version.Address)
	}

	readable := map[int64]*backend.WorkspaceRecord{}
	var infos []ObjectInformation
	for _, candidate := range referencing {
		id := candidate.Address.Workspace
		record, checked := readable[id]
		if !checked {
			loaded, err := s.backend.Workspace(ctx, id)
			if err != nil && !errors.Is(err, backend.ErrNotFound) {
				return nil, internal(err, "loading workspace %d", id)
			}
			if err == nil && !loaded.Deleted && s.authorize(caller, loaded, readAccess) == nil {
				record = &loaded
			}
			readable[id] = record
		}
		if record == nil {
			continue
		}
		infos = append(infos, objectInformation(candidate, record.Name))
	}
	return infos, nil
}
