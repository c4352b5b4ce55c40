// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend defines the persistence collaborator of the version
// store: durable workspace, object, version, and grant records plus
// document blobs.
//
// The store never allocates ids or version numbers itself. Workspace
// ids, object ids, and per-object version numbers all come from
// counters the backend advances atomically inside the transaction that
// consumes them, so concurrent saves to the same object can never be
// assigned the same version.
//
// Records are plain values. Implementations return ErrNotFound for
// missing rows and ErrNameInUse for uniqueness violations; everything
// else is an internal error. The only implementation is
// lib/backend/sqlitebackend.
package backend

import (
	"context"
	"errors"
	"io"
	"slices"
	"time"

	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/provenance"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNameInUse means a workspace or object name is already taken.
	ErrNameInUse = errors.New("name in use")
)

// WorkspaceRecord is the stored state of one workspace.
type WorkspaceRecord struct {
	ID          int64
	Name        string
	Owner       ref.User
	Description string
	Metadata    map[string]string
	Created     time.Time
	Modified    time.Time
	Deleted     bool
	Locked      bool

	// ACL carries the owner, explicit grants, and the global flag.
	ACL permission.ACL

	// MaxObjectID is the highest object id ever allocated.
	MaxObjectID int64
}

// ObjectRecord is the stored state of one object slot.
type ObjectRecord struct {
	Workspace int64
	ID        int64
	Name      string
	Hidden    bool
	Deleted   bool

	// Versions is the number of versions ever created, deleted
	// objects included. The latest version number equals it.
	Versions int
	Modified time.Time
}

// VersionRecord is one immutable saved version, joined with the
// current flags and name of its object.
type VersionRecord struct {
	Address    ref.Address
	ObjectName string
	Type       ref.TypeID
	Checksum   blobstore.Checksum
	Size       int64
	Metadata   map[string]string
	Provenance provenance.Provenance
	References []ref.Address

	// Extract is the searchable sub-document, JSON encoded. May be
	// empty.
	Extract []byte

	SavedBy ref.User
	Saved   time.Time

	// CopiedFrom is the source of a copied version; zero otherwise.
	CopiedFrom ref.Address

	Hidden  bool
	Deleted bool
}

// NewVersion is one version to append in SaveVersions.
type NewVersion struct {
	// Exactly one of ObjectID and Name identifies the target. With an
	// ObjectID the object must exist. With a Name the object is
	// created if missing, unless CreateOnly is set and it exists, in
	// which case the save fails with ErrNameInUse.
	ObjectID   int64
	Name       string
	CreateOnly bool

	// Hidden applies only when the object is created.
	Hidden bool

	Type       ref.TypeID
	Checksum   blobstore.Checksum
	Size       int64
	Metadata   map[string]string
	Provenance provenance.Provenance
	References []ref.Address
	Extract    []byte
	SavedBy    ref.User
	Saved      time.Time
	CopiedFrom ref.Address
}

// WorkspaceUpdate changes selected workspace fields. Nil fields are
// left alone. Every update sets Modified.
type WorkspaceUpdate struct {
	Name           *string
	Description    *string
	SetMetadata    map[string]string
	RemoveMetadata []string
	Locked         *bool
	Deleted        *bool
	GlobalRead     *bool
	Modified       time.Time
}

// WorkspaceFilter selects workspaces for ListWorkspaces.
type WorkspaceFilter struct {
	Owners         []ref.User
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
	Metadata       map[string]string
	Deleted        bool
}

// VersionQuery selects versions for QueryVersions.
type VersionQuery struct {
	// Workspaces restricts to these workspace ids. Empty means all.
	Workspaces []int64

	// Type restricts to versions whose type the pattern matches.
	Type ref.TypeID

	SavedBy     []ref.User
	SavedAfter  time.Time
	SavedBefore time.Time
	Metadata    map[string]string

	ShowHidden  bool
	ShowDeleted bool

	// AllVersions returns every matching version instead of only the
	// latest version of each object.
	AllVersions bool

	// Limit caps the result; zero means unlimited.
	Limit int
}

// CopyRequest copies versions between objects.
type CopyRequest struct {
	// Source object and, when Version > 0, the single version to copy.
	// Version 0 copies the full history.
	SourceWorkspace int64
	SourceObject    int64
	Version         int

	// Target is identified like NewVersion: an existing ObjectID, or a
	// Name that is created if missing.
	TargetWorkspace int64
	TargetObjectID  int64
	TargetName      string

	Modified time.Time
}

// ObjectSet groups object ids by workspace id.
type ObjectSet map[int64][]int64

// Workspaces returns the workspace ids of the set in ascending order.
func (o ObjectSet) Workspaces() []int64 {
	ids := make([]int64, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Backend is the persistence collaborator.
type Backend interface {
	CreateWorkspace(ctx context.Context, record WorkspaceRecord) (WorkspaceRecord, error)

	// CloneWorkspace creates record and copies the latest state of
	// every non-deleted object of source into it, skipping exclude.
	// Object ids are preserved; every copied version records its
	// source in CopiedFrom.
	CloneWorkspace(ctx context.Context, source int64, record WorkspaceRecord, exclude []int64) (WorkspaceRecord, error)

	Workspace(ctx context.Context, id int64) (WorkspaceRecord, error)

	// WorkspaceByName prefers the non-deleted workspace of that name,
	// falling back to the most recently deleted one.
	WorkspaceByName(ctx context.Context, name string) (WorkspaceRecord, error)

	UpdateWorkspace(ctx context.Context, id int64, update WorkspaceUpdate) (WorkspaceRecord, error)
	ListWorkspaces(ctx context.Context, filter WorkspaceFilter) ([]WorkspaceRecord, error)

	// SetGrants sets the explicit level of every user in one
	// transaction; None removes the grant.
	SetGrants(ctx context.Context, workspace int64, users []ref.User, level permission.Permission, modified time.Time) error

	Object(ctx context.Context, workspace, id int64) (ObjectRecord, error)
	ObjectByName(ctx context.Context, workspace int64, name string) (ObjectRecord, error)

	// ObjectNamesWithPrefix returns the names in workspace starting
	// with prefix.
	ObjectNamesWithPrefix(ctx context.Context, workspace int64, prefix string) ([]string, error)

	// SaveVersions appends versions to objects in one transaction,
	// creating objects as needed and undeleting deleted targets. The
	// result is in input order.
	SaveVersions(ctx context.Context, workspace int64, versions []NewVersion, modified time.Time) ([]VersionRecord, error)

	// CopyVersions copies versions from one object to another in one
	// transaction and returns the copied versions. A created target
	// inherits the source's hidden flag; an existing target keeps its
	// own and is undeleted.
	CopyVersions(ctx context.Context, request CopyRequest) ([]VersionRecord, error)

	RenameObject(ctx context.Context, workspace, id int64, name string, modified time.Time) (ObjectRecord, error)

	// SetObjectsHidden and SetObjectsDeleted flip a flag on every
	// object of the set in one transaction, touching each workspace's
	// modification time. A missing object fails the call with no
	// changes made.
	SetObjectsHidden(ctx context.Context, objects ObjectSet, hidden bool, modified time.Time) error
	SetObjectsDeleted(ctx context.Context, objects ObjectSet, deleted bool, modified time.Time) error

	// Version returns one version; version 0 means the latest.
	Version(ctx context.Context, workspace, object int64, version int) (VersionRecord, error)
	History(ctx context.Context, workspace, object int64) ([]VersionRecord, error)
	QueryVersions(ctx context.Context, query VersionQuery) ([]VersionRecord, error)

	// ReferencingVersions returns the latest version of every
	// non-deleted object whose latest version references target.
	ReferencingVersions(ctx context.Context, target ref.Address) ([]VersionRecord, error)

	// PutBlob stores document bytes under their checksum.
	PutBlob(ctx context.Context, checksum blobstore.Checksum, content io.Reader) error

	// OpenBlob returns the document bytes for a checksum.
	OpenBlob(ctx context.Context, checksum blobstore.Checksum) (io.ReadCloser, error)

	Close() error
}
