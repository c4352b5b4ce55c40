// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable identifier types for the
// workspace store: users, workspace and object locators, object
// references, absolute addresses, and schema type identifiers.
//
// Identifiers come in two phases. A locator ([WorkspaceLocator],
// [ObjectLocator], [ObjectIdentifier]) is what a caller supplies: a
// name, a numeric id, or a compound "owner:name" workspace name,
// optionally pinned to a version. Locators are syntactically validated
// at construction and never touch the persistence backend. Resolution
// (package resolve) turns a locator into a backend-bound handle; after
// that the store never re-derives identity from user input.
//
// An [Address] is the resolved, absolute form of a reference: the
// (workspace id, object id, version) triple that is stored inside
// documents and in reference lists. Its canonical text form is
// "7/12/3".
//
// All constructors return fault.Input errors that embed the offending
// value. Values are comparable and safe to use as map keys. Types that
// appear in serialized records implement encoding.TextMarshaler.
package ref
