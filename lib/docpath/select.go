// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docpath

import (
	"sort"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

// Select returns a new document containing only the values at paths
// and the containers leading to them. Selected array elements keep
// their relative order; unselected elements are dropped, so indices
// in the result may differ from the source.
//
// In strict mode a path that does not exist in doc is an input error
// naming it. Otherwise missing paths are skipped, and a document with
// nothing selected yields nil.
func Select(doc any, paths []Pointer, strict bool) (any, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	root := &selection{}
	for _, path := range paths {
		if len(path) == 0 {
			root.all = true
			continue
		}
		node := root
		for _, token := range path {
			node = node.child(token)
		}
		node.all = true
	}
	result, found, err := root.apply(doc, Pointer{}, strict)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return result, nil
}

// selection is a trie of selected paths. A node with all set selects
// the whole subtree below it.
type selection struct {
	all      bool
	children map[string]*selection
}

func (s *selection) child(token string) *selection {
	if s.children == nil {
		s.children = map[string]*selection{}
	}
	next, ok := s.children[token]
	if !ok {
		next = &selection{}
		s.children[token] = next
	}
	return next
}

func (s *selection) apply(value any, at Pointer, strict bool) (any, bool, error) {
	if s.all {
		return value, true, nil
	}
	switch node := value.(type) {
	case map[string]any:
		out := map[string]any{}
		for _, token := range s.sortedTokens() {
			sub := s.children[token]
			if token == Wildcard {
				for key, child := range node {
					selected, found, err := sub.apply(child, at.Append(key), strict)
					if err != nil {
						return nil, false, err
					}
					if found {
						out[key] = mergeSelected(out[key], selected)
					}
				}
				continue
			}
			child, ok := node[token]
			if !ok {
				if strict {
					return nil, false, missing(at.Append(token))
				}
				continue
			}
			selected, found, err := sub.apply(child, at.Append(token), strict)
			if err != nil {
				return nil, false, err
			}
			if found {
				out[token] = mergeSelected(out[token], selected)
			}
		}
		return out, len(out) > 0, nil
	case []any:
		picked := make([]any, len(node))
		present := make([]bool, len(node))
		for _, token := range s.sortedTokens() {
			sub := s.children[token]
			var indices []int
			if token == Wildcard {
				for i := range node {
					indices = append(indices, i)
				}
			} else {
				index, ok := arrayIndex(token, len(node))
				if !ok {
					if strict {
						return nil, false, missing(at.Append(token))
					}
					continue
				}
				indices = []int{index}
			}
			for _, i := range indices {
				selected, found, err := sub.apply(node[i], at.Index(i), strict)
				if err != nil {
					return nil, false, err
				}
				if found {
					picked[i] = mergeSelected(picked[i], selected)
					present[i] = true
				}
			}
		}
		out := []any{}
		for i, ok := range present {
			if ok {
				out = append(out, picked[i])
			}
		}
		return out, len(out) > 0, nil
	default:
		if len(s.children) > 0 && strict {
			return nil, false, missing(at.Append(s.sortedTokens()[0]))
		}
		return nil, false, nil
	}
}

// sortedTokens returns child tokens in a stable order so strict-mode
// errors are deterministic.
func (s *selection) sortedTokens() []string {
	tokens := make([]string, 0, len(s.children))
	for token := range s.children {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// mergeSelected combines two selections of the same source value, as
// happens when a wildcard and a literal token overlap.
func mergeSelected(existing, next any) any {
	if existing == nil {
		return next
	}
	left, leftOK := existing.(map[string]any)
	right, rightOK := next.(map[string]any)
	if leftOK && rightOK {
		for key, value := range right {
			left[key] = mergeSelected(left[key], value)
		}
		return left
	}
	return next
}

func missing(path Pointer) error {
	return fault.Inputf("Invalid selection: no value at %s", path)
}
