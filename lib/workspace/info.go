// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package workspace

import (
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/provenance"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// WorkspaceInformation describes a workspace as one caller sees it.
type WorkspaceInformation struct {
	ID       int64     `json:"id"`
	Name     string    `json:"name"`
	Owner    ref.User  `json:"owner"`
	Modified time.Time `json:"modified"`

	// MaxObjectID is the highest object id ever allocated in the
	// workspace.
	MaxObjectID int64 `json:"max_object_id"`

	// Permission is the caller's effective level.
	Permission permission.Permission `json:"permission"`

	GlobalRead bool `json:"global_read"`
	Locked     bool `json:"locked"`
	Deleted    bool `json:"deleted,omitempty"`

	// Description is truncated to DescriptionDisplayLength characters.
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func workspaceInformation(record backend.WorkspaceRecord, caller Caller) WorkspaceInformation {
	return WorkspaceInformation{
		ID:          record.ID,
		Name:        record.Name,
		Owner:       record.ACL.Owner,
		Modified:    record.Modified,
		MaxObjectID: record.MaxObjectID,
		Permission:  record.ACL.Effective(caller.User),
		GlobalRead:  record.ACL.GlobalRead,
		Locked:      record.Locked,
		Deleted:     record.Deleted,
		Description: truncate(record.Description, DescriptionDisplayLength),
		Metadata:    record.Metadata,
	}
}

// truncate returns the first limit characters of s.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// ObjectInformation describes one object version.
type ObjectInformation struct {
	Address       ref.Address        `json:"address"`
	Name          string             `json:"name"`
	Type          ref.TypeID         `json:"type"`
	Saved         time.Time          `json:"saved"`
	SavedBy       ref.User           `json:"saved_by"`
	Checksum      blobstore.Checksum `json:"checksum"`
	Size          int64              `json:"size"`
	WorkspaceName string             `json:"workspace_name"`
	Metadata      map[string]string  `json:"metadata,omitempty"`
	Hidden        bool               `json:"hidden,omitempty"`
	Deleted       bool               `json:"deleted,omitempty"`
}

func objectInformation(record backend.VersionRecord, workspaceName string) ObjectInformation {
	return ObjectInformation{
		Address:       record.Address,
		Name:          record.ObjectName,
		Type:          record.Type,
		Saved:         record.Saved,
		SavedBy:       record.SavedBy,
		Checksum:      record.Checksum,
		Size:          record.Size,
		WorkspaceName: workspaceName,
		Metadata:      record.Metadata,
		Hidden:        record.Hidden,
		Deleted:       record.Deleted,
	}
}

// ObjectData is a version with its document and history.
type ObjectData struct {
	Info ObjectInformation `json:"info"`

	// Data is the canonical JSON document, or the selected subset of
	// it when paths were requested. Nil when data was not requested.
	Data json.RawMessage `json:"data,omitempty"`

	Provenance provenance.Provenance `json:"provenance"`
	References []ref.Address         `json:"references,omitempty"`

	// Extract is the searchable subset recorded at save time.
	Extract json.RawMessage `json:"extract,omitempty"`

	// CopiedFrom is the source of a copied version when the caller can
	// still read it.
	CopiedFrom ref.Address `json:"copied_from,omitempty"`

	// CopySourceInaccessible is set when the version was copied from
	// an object the caller can no longer read. CopiedFrom is then
	// zero.
	CopySourceInaccessible bool `json:"copy_source_inaccessible,omitempty"`
}
