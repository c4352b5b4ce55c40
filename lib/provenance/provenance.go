// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package provenance models the action history attached to a saved
// version: who saved it, and the ordered actions (commands, service
// calls, scripts) that produced it, each with the objects it consumed
// and any external data it drew on.
//
// Callers supply object references as strings in
// [Action.InputObjects]. The store resolves them at save time and
// records the absolute addresses in [Action.ResolvedObjects], 1:1 and
// in the same order. Provenance references are never type-checked and
// never rewritten in the document.
package provenance

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

// Provenance is the history attached to one version.
type Provenance struct {
	// User is the saving user. The store sets it; any caller value is
	// replaced.
	User ref.User `json:"user"`

	// Date is the save time, set by the store.
	Date time.Time `json:"date"`

	Actions []Action `json:"actions,omitempty"`
}

// Action is one step in a version's history.
type Action struct {
	Time           *time.Time        `json:"time,omitempty"`
	Caller         string            `json:"caller,omitempty"`
	Service        string            `json:"service,omitempty"`
	ServiceVersion string            `json:"service_version,omitempty"`
	Method         string            `json:"method,omitempty"`
	MethodParams   []any             `json:"method_params,omitempty"`
	Script         string            `json:"script,omitempty"`
	ScriptVersion  string            `json:"script_version,omitempty"`
	CommandLine    string            `json:"command_line,omitempty"`
	Description    string            `json:"description,omitempty"`
	InputObjects   []string          `json:"input_objects,omitempty"`
	ExternalData   []ExternalData    `json:"external_data,omitempty"`
	SubActions     []SubAction       `json:"sub_actions,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`

	// ResolvedObjects holds the absolute address of each entry of
	// InputObjects. Set by the store; callers must leave it empty.
	ResolvedObjects []ref.Address `json:"resolved_objects,omitempty"`
}

// ExternalData describes data that came from outside the store.
type ExternalData struct {
	ResourceName        string     `json:"resource_name,omitempty"`
	ResourceURL         string     `json:"resource_url,omitempty"`
	ResourceVersion     string     `json:"resource_version,omitempty"`
	ResourceReleaseDate *time.Time `json:"resource_release_date,omitempty"`
	DataURL             string     `json:"data_url,omitempty"`
	DataID              string     `json:"data_id,omitempty"`
	Description         string     `json:"description,omitempty"`
}

// SubAction records a component invoked within an action.
type SubAction struct {
	Name        string `json:"name,omitempty"`
	Version     string `json:"version,omitempty"`
	CodeURL     string `json:"code_url,omitempty"`
	CommitHash  string `json:"commit_hash,omitempty"`
	EndpointURL string `json:"endpoint_url,omitempty"`
}

// Validate checks caller-supplied provenance before resolution.
// position is the 1-based index of the object in its save batch.
func (p Provenance) Validate(position int) error {
	for i, action := range p.Actions {
		if len(action.ResolvedObjects) > 0 {
			return fault.Inputf("Object #%d, provenance action #%d: resolved objects may not be set by the caller",
				position, i+1)
		}
		for j, input := range action.InputObjects {
			if input == "" {
				return fault.Inputf("Object #%d, provenance action #%d, input object #%d: object reference cannot be null or the empty string",
					position, i+1, j+1)
			}
		}
		for key := range action.Custom {
			if key == "" {
				return fault.Inputf("Object #%d, provenance action #%d: custom keys cannot be empty", position, i+1)
			}
		}
	}
	return nil
}

// References returns every input object reference, in action order
// and within an action in list order.
func (p Provenance) References() []string {
	var references []string
	for _, action := range p.Actions {
		references = append(references, action.InputObjects...)
	}
	return references
}

// Bind returns a copy of p with each action's ResolvedObjects filled
// from addresses, which must align with References().
func (p Provenance) Bind(addresses []ref.Address) (Provenance, error) {
	total := 0
	for _, action := range p.Actions {
		total += len(action.InputObjects)
	}
	if total != len(addresses) {
		return Provenance{}, fmt.Errorf("provenance has %d references, %d addresses given", total, len(addresses))
	}
	bound := p
	bound.Actions = make([]Action, len(p.Actions))
	next := 0
	for i, action := range p.Actions {
		count := len(action.InputObjects)
		if count > 0 {
			action.ResolvedObjects = append([]ref.Address(nil), addresses[next:next+count]...)
		}
		next += count
		bound.Actions[i] = action
	}
	return bound, nil
}

// Size returns the length of p's JSON encoding, the measure the size
// governor limits.
func (p Provenance) Size() (int64, error) {
	data, err := json.MarshalWithOption(p, json.DisableHTMLEscape())
	if err != nil {
		return 0, fmt.Errorf("encoding provenance: %w", err)
	}
	return int64(len(data)), nil
}
