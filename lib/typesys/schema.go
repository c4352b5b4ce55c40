// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typesys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

const (
	referenceKeyword     = "x-reference"
	referenceKeysKeyword = "x-reference-keys"
)

// referenceRule is a parsed x-reference or x-reference-keys value.
type referenceRule struct {
	kind  string
	types []ref.TypeID
}

// node is the part of a schema the occurrence walk needs. A nil node
// has nothing to report below it.
type node struct {
	reference    *referenceRule
	keyReference *referenceRule
	properties   map[string]*node
	additional   *node
	items        *node
	tuple        []*node
}

// compiler turns a decoded schema into nodes. Local $ref targets are
// compiled once and shared, so recursive schemas terminate.
type compiler struct {
	root map[string]any
	refs map[string]*node
}

func compileSchema(root map[string]any) (*node, error) {
	c := &compiler{root: root, refs: map[string]*node{}}
	return c.compile(root, "#")
}

func (c *compiler) compile(schema any, at string) (*node, error) {
	m, ok := schema.(map[string]any)
	if !ok {
		// Boolean schemas and malformed entries carry no references.
		return nil, nil
	}
	if target, ok := m["$ref"].(string); ok {
		return c.compileRef(target, at)
	}

	n := &node{}
	var err error
	if raw, ok := m[referenceKeyword]; ok {
		if n.reference, err = parseReferenceRule(raw, at+"/"+referenceKeyword); err != nil {
			return nil, err
		}
	}
	if raw, ok := m[referenceKeysKeyword]; ok {
		if n.keyReference, err = parseReferenceRule(raw, at+"/"+referenceKeysKeyword); err != nil {
			return nil, err
		}
	}
	if properties, ok := m["properties"].(map[string]any); ok {
		for name, sub := range properties {
			child, err := c.compile(sub, at+"/properties/"+name)
			if err != nil {
				return nil, err
			}
			if child != nil {
				if n.properties == nil {
					n.properties = map[string]*node{}
				}
				n.properties[name] = child
			}
		}
	}
	if n.additional, err = c.compile(m["additionalProperties"], at+"/additionalProperties"); err != nil {
		return nil, err
	}
	switch items := m["items"].(type) {
	case map[string]any:
		if n.items, err = c.compile(items, at+"/items"); err != nil {
			return nil, err
		}
	case []any:
		n.tuple = make([]*node, len(items))
		for i, sub := range items {
			if n.tuple[i], err = c.compile(sub, fmt.Sprintf("%s/items/%d", at, i)); err != nil {
				return nil, err
			}
		}
	}
	if n.empty() {
		return nil, nil
	}
	return n, nil
}

func (c *compiler) compileRef(target, at string) (*node, error) {
	if existing, ok := c.refs[target]; ok {
		return existing, nil
	}
	if !strings.HasPrefix(target, "#") {
		return nil, fmt.Errorf("%s: only local $ref targets are supported, got %q", at, target)
	}
	pointer, err := docpath.Parse(target[1:])
	if err != nil {
		return nil, fmt.Errorf("%s: $ref %q: %w", at, target, err)
	}
	resolved, found := docpath.Get(c.root, pointer)
	if !found {
		return nil, fmt.Errorf("%s: $ref %q does not resolve", at, target)
	}
	// Register before compiling so a recursive reference finds this
	// node; its contents are filled in below.
	placeholder := &node{}
	c.refs[target] = placeholder
	compiled, err := c.compile(resolved, target)
	if err != nil {
		return nil, err
	}
	if compiled != nil {
		*placeholder = *compiled
	}
	return placeholder, nil
}

func (n *node) empty() bool {
	return n.reference == nil && n.keyReference == nil && len(n.properties) == 0 &&
		n.additional == nil && n.items == nil && len(n.tuple) == 0
}

func parseReferenceRule(raw any, at string) (*referenceRule, error) {
	switch value := raw.(type) {
	case bool:
		if !value {
			return nil, nil
		}
		return &referenceRule{}, nil
	case map[string]any:
		rule := &referenceRule{}
		if kind, ok := value["kind"]; ok {
			text, ok := kind.(string)
			if !ok {
				return nil, fmt.Errorf("%s: kind must be a string", at)
			}
			rule.kind = text
		}
		if types, ok := value["types"]; ok {
			list, ok := types.([]any)
			if !ok {
				return nil, fmt.Errorf("%s: types must be an array", at)
			}
			for _, entry := range list {
				text, ok := entry.(string)
				if !ok {
					return nil, fmt.Errorf("%s: type entries must be strings", at)
				}
				typeID, err := ref.ParseTypeID(text)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", at, err)
				}
				rule.types = append(rule.types, typeID)
			}
		}
		return rule, nil
	default:
		return nil, fmt.Errorf("%s: must be true or an object", at)
	}
}

// collect appends the occurrences under value, in document order with
// map keys sorted.
func (n *node) collect(value any, path docpath.Pointer, out []Occurrence) []Occurrence {
	if n == nil {
		return out
	}
	switch v := value.(type) {
	case string:
		if n.reference != nil {
			out = append(out, Occurrence{
				Path:  path,
				Value: v,
				Kind:  n.reference.kind,
				Types: n.reference.types,
			})
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			childPath := path.Append(key)
			if n.keyReference != nil {
				out = append(out, Occurrence{
					Path:  childPath,
					Key:   true,
					Value: key,
					Kind:  n.keyReference.kind,
					Types: n.keyReference.types,
				})
			}
			child, ok := n.properties[key]
			if !ok {
				child = n.additional
			}
			out = child.collect(v[key], childPath, out)
		}
	case []any:
		for i, element := range v {
			child := n.items
			if n.tuple != nil {
				child = nil
				if i < len(n.tuple) {
					child = n.tuple[i]
				}
			}
			out = child.collect(element, path.Index(i), out)
		}
	}
	return out
}
