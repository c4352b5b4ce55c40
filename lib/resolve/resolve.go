// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve turns workspace and object locators into handles
// bound to backend ids.
//
// Locators are syntactically valid by construction (lib/ref), so
// resolution only consults the backend. A missing workspace or object
// is fault.NotFound; one that exists but is deleted is fault.Deleted,
// with a different message. Batch resolution is all-or-fail and the
// error names the failing identifier.
//
// Handles are comparable and serve as map keys. Code above this
// package addresses workspaces and objects only through them.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Workspace is a resolved workspace handle.
type Workspace struct {
	id   int64
	name string
}

// ID returns the workspace id.
func (w Workspace) ID() int64 { return w.id }

// Name returns the workspace name at resolution time.
func (w Workspace) Name() string { return w.name }

// IsZero reports whether w is the zero handle.
func (w Workspace) IsZero() bool { return w.id == 0 }

// Label returns "id N, name X", the form used in messages.
func (w Workspace) Label() string { return fmt.Sprintf("%d (name %s)", w.id, w.name) }

// Object is a resolved object handle.
type Object struct {
	workspace Workspace
	id        int64
	name      string
}

// Workspace returns the containing workspace.
func (o Object) Workspace() Workspace { return o.workspace }

// ID returns the object id.
func (o Object) ID() int64 { return o.id }

// Name returns the object name at resolution time.
func (o Object) Name() string { return o.name }

// Label returns the form used in messages.
func (o Object) Label() string {
	return fmt.Sprintf("Object %d (name %s) in workspace %s", o.id, o.name, o.workspace.Label())
}

// Options adjust resolution.
type Options struct {
	// AllowDeleted resolves deleted workspaces and objects instead of
	// failing with fault.Deleted.
	AllowDeleted bool

	// Check, if set, is applied to each resolved workspace before any
	// of its objects are resolved. Permission checks go here.
	Check func(backend.WorkspaceRecord) error
}

// Resolver resolves locators against a backend.
type Resolver struct {
	backend backend.Backend
}

// New returns a Resolver.
func New(b backend.Backend) *Resolver {
	return &Resolver{backend: b}
}

// WorkspaceHandle returns the handle for a record already loaded.
func WorkspaceHandle(record backend.WorkspaceRecord) Workspace {
	return Workspace{id: record.ID, name: record.Name}
}

// ObjectHandle returns the handle for a record already loaded.
func ObjectHandle(workspace Workspace, record backend.ObjectRecord) Object {
	return Object{workspace: workspace, id: record.ID, name: record.Name}
}

// Workspace resolves one workspace locator.
func (r *Resolver) Workspace(ctx context.Context, locator ref.WorkspaceLocator, opts Options) (Workspace, backend.WorkspaceRecord, error) {
	if locator.IsZero() {
		return Workspace{}, backend.WorkspaceRecord{}, fault.Inputf("A workspace must be specified by name or id")
	}
	var (
		record backend.WorkspaceRecord
		err    error
	)
	if id, ok := locator.ID(); ok {
		record, err = r.backend.Workspace(ctx, id)
	} else {
		name, _ := locator.Name()
		record, err = r.backend.WorkspaceByName(ctx, name)
	}
	if errors.Is(err, backend.ErrNotFound) {
		return Workspace{}, backend.WorkspaceRecord{}, fault.NotFoundf("No workspace with %s exists", locator.Describe())
	}
	if err != nil {
		return Workspace{}, backend.WorkspaceRecord{}, fmt.Errorf("resolving workspace %s: %w", locator, err)
	}
	if record.Deleted && !opts.AllowDeleted {
		return Workspace{}, backend.WorkspaceRecord{}, fault.Deletedf("Workspace %s is deleted", locator)
	}
	if opts.Check != nil {
		if err := opts.Check(record); err != nil {
			return Workspace{}, backend.WorkspaceRecord{}, err
		}
	}
	return WorkspaceHandle(record), record, nil
}

// Object resolves an object locator within a resolved workspace. The
// locator's version, if any, is not checked here.
func (r *Resolver) Object(ctx context.Context, workspace Workspace, locator ref.ObjectLocator, opts Options) (Object, backend.ObjectRecord, error) {
	var (
		record backend.ObjectRecord
		err    error
	)
	if id, ok := locator.ID(); ok {
		record, err = r.backend.Object(ctx, workspace.id, id)
	} else if name, ok := locator.Name(); ok {
		record, err = r.backend.ObjectByName(ctx, workspace.id, name)
	} else {
		return Object{}, backend.ObjectRecord{}, fault.Inputf("An object must be specified by name or id")
	}
	if errors.Is(err, backend.ErrNotFound) {
		return Object{}, backend.ObjectRecord{}, fault.NotFoundf("No object with %s exists in workspace %s",
			locator.Describe(), workspace.Label())
	}
	if err != nil {
		return Object{}, backend.ObjectRecord{}, fmt.Errorf("resolving object %s: %w", locator, err)
	}
	handle := ObjectHandle(workspace, record)
	if record.Deleted && !opts.AllowDeleted {
		return Object{}, backend.ObjectRecord{}, fault.Deletedf("%s has been deleted", handle.Label())
	}
	return handle, record, nil
}

// Target is one resolved object identifier.
type Target struct {
	Identifier ref.ObjectIdentifier
	Object     Object
	Workspace  backend.WorkspaceRecord
	Record     backend.ObjectRecord

	// Version is the requested version, 0 for the latest.
	Version int
}

// Objects resolves identifiers in order. Each distinct workspace is
// resolved and checked once. The first failure is returned as an
// *ObjectError naming the identifier.
func (r *Resolver) Objects(ctx context.Context, identifiers []ref.ObjectIdentifier, opts Options) ([]Target, error) {
	type resolvedWorkspace struct {
		handle Workspace
		record backend.WorkspaceRecord
		err    error
	}
	workspaces := map[ref.WorkspaceLocator]resolvedWorkspace{}
	targets := make([]Target, 0, len(identifiers))
	for _, identifier := range identifiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ws, ok := workspaces[identifier.Workspace]
		if !ok {
			ws.handle, ws.record, ws.err = r.Workspace(ctx, identifier.Workspace, opts)
			workspaces[identifier.Workspace] = ws
		}
		if ws.err != nil {
			return nil, newObjectError(identifier, ws.err)
		}
		object, record, err := r.Object(ctx, ws.handle, identifier.Object, opts)
		if err != nil {
			return nil, newObjectError(identifier, err)
		}
		version, _ := identifier.Object.Version()
		targets = append(targets, Target{
			Identifier: identifier,
			Object:     object,
			Workspace:  ws.record,
			Record:     record,
			Version:    version,
		})
	}
	return targets, nil
}

// ObjectError is a failure resolving or using one object identifier.
type ObjectError struct {
	Identifier ref.ObjectIdentifier
	Err        error
}

func newObjectError(identifier ref.ObjectIdentifier, err error) *ObjectError {
	var existing *ObjectError
	if errors.As(err, &existing) {
		return existing
	}
	return &ObjectError{Identifier: identifier, Err: err}
}

// NewObjectError attributes err to identifier.
func NewObjectError(identifier ref.ObjectIdentifier, err error) error {
	if err == nil {
		return nil
	}
	return newObjectError(identifier, err)
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("Object %s cannot be accessed: %v", e.Identifier, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

// FaultKind implements fault.Classified, reporting the cause's kind.
func (e *ObjectError) FaultKind() fault.Kind { return fault.KindOf(e.Err) }
