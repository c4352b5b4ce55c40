// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typesys

import (
	"context"

	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Validator checks documents against types.
type Validator interface {
	// Validate resolves typeID to an absolute type, checks the
	// document against it, and reports its identifier occurrences.
	// Failures are input errors.
	Validate(ctx context.Context, typeID ref.TypeID, document []byte) (*Validation, error)
}

// Occurrence is one identifier found in a document.
type Occurrence struct {
	// Path addresses the identifier. For a map key it addresses the
	// entry whose key is the identifier.
	Path docpath.Pointer

	// Key reports whether the identifier is a map key rather than a
	// string value.
	Key bool

	// Value is the identifier text as written.
	Value string

	// Kind is empty for store references. Other kinds are external
	// identifiers.
	Kind string

	// Types restricts the target's type when non-empty. Each entry is
	// a pattern for ref.TypeID.Matches.
	Types []ref.TypeID
}

// External reports whether the occurrence is not a store reference.
func (o Occurrence) External() bool { return o.Kind != "" }

// Validation is the outcome of a successful Validate.
type Validation struct {
	// Type is the absolute type the document was checked against.
	Type ref.TypeID

	// Document is the decoded document. Numbers are json.Number so
	// that canonical output reproduces them exactly.
	Document any

	// Occurrences are in document order, map keys sorted.
	Occurrences []Occurrence

	definition *Type
}

// Extract returns the searchable sub-document of doc as JSON, or nil
// when the type declares no searchable paths or none are present.
// doc is normally the document after reference rewriting.
func (v *Validation) Extract(doc any) ([]byte, error) {
	if v.definition == nil {
		return nil, nil
	}
	return v.definition.extract(doc)
}

// Metadata returns the metadata the type's extraction rules derive
// from doc. Rules whose path is absent are skipped.
func (v *Validation) Metadata(doc any) (map[string]string, error) {
	if v.definition == nil {
		return nil, nil
	}
	return v.definition.metadata(doc)
}
