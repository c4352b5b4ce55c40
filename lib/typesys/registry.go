// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typesys

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"

	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Definition is the on-disk form of one type version.
type Definition struct {
	Module      string          `json:"module"`
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema"`

	// Searchable lists JSON pointers (with "*" wildcards) whose values
	// form the sub-document extract.
	Searchable []string `json:"searchable,omitempty"`

	// Metadata maps metadata keys to "/pointer" (the scalar at that
	// path) or "length(/pointer)" (the element count of the array,
	// object, or string there).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Type is a compiled, registered type version.
type Type struct {
	ID          ref.TypeID
	Description string

	schema     *gojsonschema.Schema
	references *node
	searchable []docpath.Pointer
	rules      []metadataRule
}

// Registry holds compiled types. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[string][]*Type // by "Module.Name", sorted by version
	logger *slog.Logger
}

var _ Validator = (*Registry)(nil)

// NewRegistry returns an empty registry. A nil logger discards.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{types: map[string][]*Type{}, logger: logger}
}

// LoadDirectory registers every *.json and *.jsonc file in directory,
// in name order.
func (r *Registry) LoadDirectory(directory string) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return fmt.Errorf("reading type directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".json", ".jsonc":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if err := r.LoadFile(filepath.Join(directory, name)); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile registers one JSONC definition file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading type definition: %w", err)
	}
	var definition Definition
	if err := json.Unmarshal(jsonc.ToJSON(data), &definition); err != nil {
		return fmt.Errorf("parsing type definition %s: %w", path, err)
	}
	typ, err := r.Register(definition)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	r.logger.Debug("type registered", "type", typ.ID.String(), "file", path)
	return nil
}

// Register compiles and adds a definition. Registering the same
// absolute type twice is an error.
func (r *Registry) Register(definition Definition) (*Type, error) {
	major, minor, err := parseVersion(definition.Version)
	if err != nil {
		return nil, fmt.Errorf("type %s.%s: %w", definition.Module, definition.Name, err)
	}
	id, err := ref.NewTypeID(definition.Module, definition.Name, major, minor)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(definition.Schema)) == 0 {
		return nil, fmt.Errorf("type %s: schema is required", id)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(definition.Schema))
	if err != nil {
		return nil, fmt.Errorf("type %s: compiling schema: %w", id, err)
	}
	var root map[string]any
	if err := json.Unmarshal(definition.Schema, &root); err != nil {
		return nil, fmt.Errorf("type %s: schema must be an object: %w", id, err)
	}
	references, err := compileSchema(root)
	if err != nil {
		return nil, fmt.Errorf("type %s: %w", id, err)
	}

	typ := &Type{
		ID:          id,
		Description: definition.Description,
		schema:      compiled,
		references:  references,
	}
	for _, text := range definition.Searchable {
		pointer, err := docpath.Parse(text)
		if err != nil {
			return nil, fmt.Errorf("type %s: searchable: %w", id, err)
		}
		typ.searchable = append(typ.searchable, pointer)
	}
	if typ.rules, err = parseMetadataRules(definition.Metadata); err != nil {
		return nil, fmt.Errorf("type %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := id.TypeString()
	for _, existing := range r.types[key] {
		if existing.ID == id {
			return nil, fmt.Errorf("type %s is already registered", id)
		}
	}
	versions := append(r.types[key], typ)
	sort.Slice(versions, func(i, j int) bool {
		a, b := versions[i].ID, versions[j].ID
		aMajor, _ := a.Major()
		bMajor, _ := b.Major()
		if aMajor != bMajor {
			return aMajor < bMajor
		}
		aMinor, _ := a.Minor()
		bMinor, _ := b.Minor()
		return aMinor < bMinor
	})
	r.types[key] = versions
	return typ, nil
}

// Lookup returns the registered type typeID selects.
func (r *Registry) Lookup(typeID ref.TypeID) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.types[typeID.TypeString()]
	// Versions are ascending, so the last match is the latest.
	for i := len(versions) - 1; i >= 0; i-- {
		if typeID.Matches(versions[i].ID) {
			return versions[i], nil
		}
	}
	return nil, fault.Inputf("Unable to locate type %s", typeID)
}

// Types returns every registered absolute type, sorted.
func (r *Registry) Types() []ref.TypeID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []ref.TypeID
	for _, versions := range r.types {
		for _, typ := range versions {
			ids = append(ids, typ.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Validate implements Validator.
func (r *Registry) Validate(ctx context.Context, typeID ref.TypeID, document []byte) (*Validation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ, err := r.Lookup(typeID)
	if err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(document))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fault.Inputf("Document is not valid JSON: %v", err)
	}
	if decoder.More() {
		return nil, fault.Inputf("Document is not valid JSON: trailing data after the top-level value")
	}

	result, err := typ.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fault.Inputf("Document is not valid JSON: %v", err)
	}
	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, problem := range result.Errors() {
			messages = append(messages, problem.String())
		}
		sort.Strings(messages)
		return nil, fault.Inputf("Document failed validation against %s: %s", typ.ID, strings.Join(messages, "; "))
	}

	return &Validation{
		Type:        typ.ID,
		Document:    doc,
		Occurrences: typ.references.collect(doc, docpath.Pointer{}, nil),
		definition:  typ,
	}, nil
}

// parseVersion parses "M.m".
func parseVersion(text string) (major, minor int, err error) {
	majorText, minorText, ok := strings.Cut(text, ".")
	if !ok {
		return 0, 0, fmt.Errorf("version %q must be major.minor", text)
	}
	if major, err = strconv.Atoi(majorText); err != nil || major < 0 {
		return 0, 0, fmt.Errorf("version %q must be major.minor", text)
	}
	if minor, err = strconv.Atoi(minorText); err != nil || minor < 0 {
		return 0, 0, fmt.Errorf("version %q must be major.minor", text)
	}
	return major, minor, nil
}
