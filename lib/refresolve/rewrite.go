// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package refresolve

import (
	"fmt"
	"sort"

	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/typesys"
)

// rewritePlan indexes replacements by path string.
type rewritePlan struct {
	// values replaces the string at a path.
	values map[string]string

	// keys renames entries of the map at a path: old key to new key.
	keys map[string]map[string]string

	// dirty holds every path with a rewrite at or below it.
	dirty map[string]bool
}

func newRewritePlan() *rewritePlan {
	return &rewritePlan{
		values: map[string]string{},
		keys:   map[string]map[string]string{},
		dirty:  map[string]bool{},
	}
}

func (p *rewritePlan) add(occurrence typesys.Occurrence, replacement string) {
	if occurrence.Key {
		parent := occurrence.Path[:len(occurrence.Path)-1]
		key := parent.String()
		if p.keys[key] == nil {
			p.keys[key] = map[string]string{}
		}
		p.keys[key][occurrence.Value] = replacement
		p.markDirty(parent)
		return
	}
	p.values[occurrence.Path.String()] = replacement
	p.markDirty(occurrence.Path)
}

func (p *rewritePlan) markDirty(path docpath.Pointer) {
	for i := len(path); i >= 0; i-- {
		key := path[:i].String()
		if p.dirty[key] {
			return
		}
		p.dirty[key] = true
	}
}

// apply builds the rewritten document.
func (p *rewritePlan) apply(doc any, position int) (any, error) {
	if len(p.dirty) == 0 {
		return doc, nil
	}
	return p.rewrite(doc, docpath.Pointer{}, position)
}

func (p *rewritePlan) rewrite(value any, path docpath.Pointer, position int) (any, error) {
	key := path.String()
	if !p.dirty[key] {
		return value, nil
	}
	if replacement, ok := p.values[key]; ok {
		return replacement, nil
	}
	switch node := value.(type) {
	case map[string]any:
		renames := p.keys[key]
		names := make([]string, 0, len(node))
		for name := range node {
			names = append(names, name)
		}
		sort.Strings(names)

		out := make(map[string]any, len(node))
		origin := make(map[string]string, len(node))
		for _, name := range names {
			child, err := p.rewrite(node[name], path.Append(name), position)
			if err != nil {
				return nil, err
			}
			target := name
			if renamed, ok := renames[name]; ok {
				target = renamed
			}
			if previous, exists := origin[target]; exists {
				return nil, &ReferenceError{
					Position: position,
					Path:     path,
					Kind:     fault.Integrity,
					Message: fmt.Sprintf("keys %s and %s both resolve to %s; rewriting would lose an entry",
						previous, name, target),
				}
			}
			origin[target] = name
			out[target] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, element := range node {
			child, err := p.rewrite(element, path.Index(i), position)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	default:
		return value, nil
	}
}
