// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typesys

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/docpath"
	"github.com/bureau-foundation/wsstore/lib/fault"
)

type metadataRule struct {
	key    string
	path   docpath.Pointer
	length bool
}

func parseMetadataRules(rules map[string]string) ([]metadataRule, error) {
	keys := make([]string, 0, len(rules))
	for key := range rules {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parsed := make([]metadataRule, 0, len(keys))
	for _, key := range keys {
		expression := strings.TrimSpace(rules[key])
		rule := metadataRule{key: key}
		if inner, ok := strings.CutPrefix(expression, "length("); ok {
			inner, ok = strings.CutSuffix(inner, ")")
			if !ok {
				return nil, fmt.Errorf("metadata %s: unterminated length(", key)
			}
			expression = inner
			rule.length = true
		}
		path, err := docpath.Parse(expression)
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", key, err)
		}
		rule.path = path
		parsed = append(parsed, rule)
	}
	return parsed, nil
}

func (t *Type) extract(doc any) ([]byte, error) {
	if len(t.searchable) == 0 {
		return nil, nil
	}
	selected, err := docpath.Select(doc, t.searchable, false)
	if err != nil {
		return nil, err
	}
	if selected == nil {
		return nil, nil
	}
	data, err := json.MarshalWithOption(selected, json.DisableHTMLEscape())
	if err != nil {
		return nil, fmt.Errorf("encoding extract: %w", err)
	}
	return data, nil
}

func (t *Type) metadata(doc any) (map[string]string, error) {
	if len(t.rules) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(t.rules))
	for _, rule := range t.rules {
		value, found := docpath.Get(doc, rule.path)
		if !found {
			continue
		}
		if rule.length {
			switch v := value.(type) {
			case []any:
				out[rule.key] = strconv.Itoa(len(v))
			case map[string]any:
				out[rule.key] = strconv.Itoa(len(v))
			case string:
				out[rule.key] = strconv.Itoa(len([]rune(v)))
			default:
				return nil, fault.Inputf("Metadata extraction %s: value at %s has no length", rule.key, rule.path)
			}
			continue
		}
		switch v := value.(type) {
		case string:
			out[rule.key] = v
		case json.Number:
			out[rule.key] = v.String()
		case float64:
			out[rule.key] = strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			out[rule.key] = strconv.FormatBool(v)
		case nil:
			out[rule.key] = "null"
		default:
			return nil, fault.Inputf("Metadata extraction %s: value at %s is not a scalar", rule.key, rule.path)
		}
	}
	return out, nil
}
