// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"context"
	"errors"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/resolve"
)

// CopyObject copies the full history of from, or only its pinned
// version, into the object to. The target is created when named and
// missing; an existing target keeps its hidden flag and is undeleted.
// Requires read on the source and write on the destination.
func (s *Service) CopyObject(ctx context.Context, caller Caller, from, to ref.ObjectIdentifier) (ObjectInformation, error) {
	if _, ok := to.Object.Version(); ok {
		return ObjectInformation{}, fault.Inputf("The copy target %s may not specify a version", to)
	}
	source, err := s.object(ctx, caller, from, readAccess, false)
	if err != nil {
		return ObjectInformation{}, err
	}
	destination, destinationRecord, err := s.workspace(ctx, caller, to.Workspace, writeAccess, false)
	if err != nil {
		return ObjectInformation{}, resolve.NewObjectError(to, err)
	}

	request := backend.CopyRequest{
		SourceWorkspace: source.workspace.ID,
		SourceObject:    source.record.ID,
		Version:         source.version,
		TargetWorkspace: destination.ID(),
		Modified:        s.now(),
	}
	if id, ok := to.Object.ID(); ok {
		if _, _, err := s.resolver.Object(ctx, destination, to.Object, resolve.Options{AllowDeleted: true}); err != nil {
			return ObjectInformation{}, resolve.NewObjectError(to, err)
		}
		request.TargetObjectID = id
	} else if name, ok := to.Object.Name(); ok {
		if err := ref.ValidateObjectName(name); err != nil {
			return ObjectInformation{}, err
		}
		request.TargetName = name
	} else {
		return ObjectInformation{}, fault.Inputf("The copy target must name an object")
	}

	copied, err := s.backend.CopyVersions(ctx, request)
	if err != nil {
		return ObjectInformation{}, internal(err, "copying %s to %s", source.handle.Label(), to)
	}
	if len(copied) == 0 {
		return ObjectInformation{}, fault.NotFoundf("%s has no versions to copy", source.handle.Label())
	}
	s.metrics.versionsSaved.Add(float64(len(copied)))
	latest := copied[len(copied)-1]
	s.logger.Info("object copied",
		"source", source.handle.Label(),
		"target", latest.Address.String(),
		"versions", len(copied),
	)
	return objectInformation(latest, destinationRecord.Name), nil
}

// RevertObject saves a new version of an object with the content of
// the version named in identifier. The object keeps its current hidden
// flag. Requires write permission.
func (s *Service) RevertObject(ctx context.Context, caller Caller, identifier ref.ObjectIdentifier) (ObjectInformation, error) {
	if _, ok := identifier.Object.Version(); !ok {
		return ObjectInformation{}, fault.Inputf("A version must be specified to revert %s", identifier)
	}
	target, err := s.object(ctx, caller, identifier, writeAccess, false)
	if err != nil {
		return ObjectInformation{}, err
	}
	old, err := s.loadVersion(ctx, identifier, target)
	if err != nil {
		return ObjectInformation{}, err
	}
	now := s.now()
	records, err := s.backend.SaveVersions(ctx, target.workspace.ID, []backend.NewVersion{{
		ObjectID:   target.record.ID,
		Type:       old.Type,
		Checksum:   old.Checksum,
		Size:       old.Size,
		Metadata:   old.Metadata,
		Provenance: old.Provenance,
		References: old.References,
		Extract:    old.Extract,
		SavedBy:    caller.User,
		Saved:      now,
	}}, now)
	if err != nil {
		return ObjectInformation{}, internal(err, "reverting %s", target.handle.Label())
	}
	s.metrics.versionsSaved.Inc()
	s.logger.Info("object reverted",
		"object", target.handle.Label(),
		"from_version", old.Address.Version,
		"version", records[0].Address.Version,
	)
	return objectInformation(records[0], target.workspace.Name), nil
}

// RenameObject renames an object. Requires write permission.
func (s *Service) RenameObject(ctx context.Context, caller Caller, identifier ref.ObjectIdentifier, name string) (ObjectInformation, error) {
	if err := ref.ValidateObjectName(name); err != nil {
		return ObjectInformation{}, err
	}
	target, err := s.object(ctx, caller, identifier, writeAccess, false)
	if err != nil {
		return ObjectInformation{}, err
	}
	if target.record.Name == name {
		return ObjectInformation{}, fault.Inputf("%s is already named %s", target.handle.Label(), name)
	}
	_, err = s.backend.RenameObject(ctx, target.workspace.ID, target.record.ID, name, s.now())
	if errors.Is(err, backend.ErrNameInUse) {
		return ObjectInformation{}, fault.Inputf("There is already an object named %s in workspace %s",
			name, target.handle.Workspace().Label())
	}
	if err != nil {
		return ObjectInformation{}, internal(err, "renaming %s", target.handle.Label())
	}
	latest, err := s.backend.Version(ctx, target.workspace.ID, target.record.ID, 0)
	if err != nil {
		return ObjectInformation{}, internal(err, "loading %s", target.handle.Label())
	}
	return objectInformation(latest, target.workspace.Name), nil
}

// SetObjectsHidden hides or unhides objects. Objects already in the
// requested state are left alone. Requires write permission on every
// workspace involved.
func (s *Service) SetObjectsHidden(ctx context.Context, caller Caller, identifiers []ref.ObjectIdentifier, hidden bool) error {
	return s.setFlag(ctx, caller, identifiers, false, func(objects backend.ObjectSet) error {
		return s.backend.SetObjectsHidden(ctx, objects, hidden, s.now())
	})
}

// SetObjectsDeleted deletes or undeletes objects. Deleting an object
// that is already deleted fails; undeleting a live object does
// nothing. Requires write permission on every workspace involved.
func (s *Service) SetObjectsDeleted(ctx context.Context, caller Caller, identifiers []ref.ObjectIdentifier, deleted bool) error {
	return s.setFlag(ctx, caller, identifiers, !deleted, func(objects backend.ObjectSet) error {
		return s.backend.SetObjectsDeleted(ctx, objects, deleted, s.now())
	})
}

// setFlag resolves every identifier before changing anything, then
// applies change once to the whole set.
func (s *Service) setFlag(ctx context.Context, caller Caller, identifiers []ref.ObjectIdentifier, allowDeleted bool, change func(objects backend.ObjectSet) error) error {
	if len(identifiers) == 0 {
		return fault.Inputf("No object identifiers provided")
	}
	if err := s.checkAdmin(caller); err != nil {
		return err
	}
	check := s.checker(caller, writeAccess)
	targets, err := s.resolver.Objects(ctx, identifiers, resolve.Options{
		AllowDeleted: allowDeleted,
		Check: func(record backend.WorkspaceRecord) error {
			if record.Deleted {
				return fault.Deletedf("Workspace %s is deleted", record.Name)
			}
			return check(record)
		},
	})
	if err != nil {
		return err
	}

	objects := backend.ObjectSet{}
	for _, target := range targets {
		objects[target.Workspace.ID] = append(objects[target.Workspace.ID], target.Record.ID)
	}
	if err := change(objects); err != nil {
		return internal(err, "updating %d objects", len(targets))
	}
	return nil
}
