// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package refresolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/typesys"
)

// Target is a resolved reference.
type Target struct {
	Address ref.Address
	Type    ref.TypeID
}

// Lookup resolves a parsed identifier for user. Implementations
// require read access and return classified errors (fault.NotFound,
// fault.Deleted, fault.Inaccessible) for unusable targets.
type Lookup interface {
	LookupReference(ctx context.Context, user ref.User, identifier ref.ObjectIdentifier) (Target, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, user ref.User, identifier ref.ObjectIdentifier) (Target, error)

// LookupReference implements Lookup.
func (f LookupFunc) LookupReference(ctx context.Context, user ref.User, identifier ref.ObjectIdentifier) (Target, error) {
	return f(ctx, user, identifier)
}

// Config configures an Engine.
type Config struct {
	Lookup Lookup

	// MaxIdentifiers caps the distinct identifiers in one call. Zero
	// is unlimited.
	MaxIdentifiers int

	Logger *slog.Logger
}

// Engine creates batches. It holds no per-call state and is safe for
// concurrent use.
type Engine struct {
	lookup         Lookup
	maxIdentifiers int
	logger         *slog.Logger
}

// New returns an Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{lookup: cfg.Lookup, maxIdentifiers: cfg.MaxIdentifiers, logger: logger}
}

// NewBatch starts a save call made by user (zero for anonymous).
func (e *Engine) NewBatch(user ref.User) *Batch {
	return &Batch{
		engine:   e,
		user:     user,
		resolved: map[string]Target{},
		seen:     map[string]bool{},
	}
}

// Batch is the per-call resolution state. Not safe for concurrent use.
type Batch struct {
	engine   *Engine
	user     ref.User
	resolved map[string]Target
	seen     map[string]bool
}

// Result is one resolved document.
type Result struct {
	// Document is the rewritten document. It shares unchanged
	// subtrees with the input.
	Document any

	// References are the distinct resolved addresses in order of
	// first occurrence.
	References []ref.Address
}

// Identifiers returns the number of distinct identifiers counted so
// far in the call.
func (b *Batch) Identifiers() int { return len(b.seen) }

// Resolve resolves and rewrites the occurrences of the document at
// position (1-based) in the call.
func (b *Batch) Resolve(ctx context.Context, position int, validation *typesys.Validation) (*Result, error) {
	plan := newRewritePlan()
	var references []ref.Address
	included := map[ref.Address]bool{}

	for _, occurrence := range validation.Occurrences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if occurrence.Value == "" {
			return nil, &ReferenceError{
				Position: position,
				Path:     occurrence.Path,
				Kind:     fault.Input,
				Message:  "identifier is empty",
			}
		}
		if err := b.count(position, occurrence.Kind, occurrence.Value); err != nil {
			return nil, err
		}
		if occurrence.External() {
			continue
		}

		target, err := b.resolve(ctx, occurrence.Value)
		if err != nil {
			return nil, &ReferenceError{
				Position:   position,
				Path:       occurrence.Path,
				Identifier: occurrence.Value,
				Kind:       fault.KindOf(err),
				Err:        err,
			}
		}
		if !allowed(occurrence.Types, target.Type) {
			return nil, &ReferenceError{
				Position:   position,
				Path:       occurrence.Path,
				Identifier: occurrence.Value,
				Kind:       fault.Integrity,
				Message: fmt.Sprintf("the referenced object %s has type %s, which is not one of the allowed types [%s]",
					target.Address, target.Type, joinTypes(occurrence.Types)),
			}
		}

		plan.add(occurrence, target.Address.String())
		if !included[target.Address] {
			included[target.Address] = true
			references = append(references, target.Address)
		}
	}

	document, err := plan.apply(validation.Document, position)
	if err != nil {
		return nil, err
	}
	b.engine.logger.Debug("references resolved",
		"position", position,
		"occurrences", len(validation.Occurrences),
		"references", len(references),
	)
	return &Result{Document: document, References: references}, nil
}

// ResolveProvenance resolves provenance input identifiers. They are
// counted toward the call's cap but never type-checked, and the
// result is 1:1 with identifiers.
func (b *Batch) ResolveProvenance(ctx context.Context, position int, identifiers []string) ([]ref.Address, error) {
	if len(identifiers) == 0 {
		return nil, nil
	}
	addresses := make([]ref.Address, len(identifiers))
	for i, identifier := range identifiers {
		if identifier == "" {
			return nil, &ReferenceError{
				Position:   position,
				Provenance: true,
				Kind:       fault.Input,
				Message:    "identifier is empty",
			}
		}
		if err := b.count(position, "", identifier); err != nil {
			return nil, err
		}
		target, err := b.resolve(ctx, identifier)
		if err != nil {
			return nil, &ReferenceError{
				Position:   position,
				Provenance: true,
				Identifier: identifier,
				Kind:       fault.KindOf(err),
				Err:        err,
			}
		}
		addresses[i] = target.Address
	}
	return addresses, nil
}

// count records a distinct identifier and enforces the cap.
func (b *Batch) count(position int, kind, value string) error {
	key := kind + "\x00" + value
	if b.seen[key] {
		return nil
	}
	b.seen[key] = true
	if limit := b.engine.maxIdentifiers; limit > 0 && len(b.seen) > limit {
		return fault.Resourcef("Object #%d brings the number of distinct identifiers in the call to %d, exceeding the limit of %d",
			position, len(b.seen), limit)
	}
	return nil
}

func (b *Batch) resolve(ctx context.Context, text string) (Target, error) {
	if target, ok := b.resolved[text]; ok {
		return target, nil
	}
	identifier, err := ref.ParseReference(text)
	if err != nil {
		return Target{}, err
	}
	target, err := b.engine.lookup.LookupReference(ctx, b.user, identifier)
	if err != nil {
		return Target{}, err
	}
	b.resolved[text] = target
	return target, nil
}

func allowed(types []ref.TypeID, actual ref.TypeID) bool {
	if len(types) == 0 {
		return true
	}
	for _, pattern := range types {
		if pattern.Matches(actual) {
			return true
		}
	}
	return false
}

func joinTypes(types []ref.TypeID) string {
	names := make([]string, len(types))
	for i, typ := range types {
		names[i] = typ.String()
	}
	return strings.Join(names, ", ")
}

// ReferenceError is a failure attributed to one identifier.
type ReferenceError struct {
	// Position is the 1-based object position in the call.
	Position int

	// Path locates a document occurrence. Nil for provenance.
	Path docpath.Pointer

	// Provenance marks a provenance input identifier.
	Provenance bool

	// Identifier is the identifier as written. Empty for empty
	// identifiers.
	Identifier string

	Kind    fault.Kind
	Message string
	Err     error
}

func (e *ReferenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Object #%d has invalid ", e.Position)
	if e.Provenance {
		b.WriteString("provenance ")
	}
	b.WriteString("reference")
	if e.Identifier != "" {
		b.WriteString(" " + e.Identifier)
	}
	if !e.Provenance {
		b.WriteString(" at " + pathLabel(e.Path))
	}
	b.WriteString(": ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// FaultKind implements fault.Classified.
func (e *ReferenceError) FaultKind() fault.Kind { return e.Kind }

func pathLabel(path docpath.Pointer) string {
	if len(path) == 0 {
		return "/"
	}
	return path.String()
}
