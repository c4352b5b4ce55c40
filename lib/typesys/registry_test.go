// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package typesys

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/ref"
)

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry := NewRegistry(nil)
	if err := registry.LoadDirectory("testdata"); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	return registry
}

func simpleDefinition(version string) Definition {
	return Definition{
		Module:  "Test",
		Name:    "Thing",
		Version: version,
		Schema:  json.RawMessage(`{"type":"object"}`),
	}
}

func TestLookup(t *testing.T) {
	registry := NewRegistry(nil)
	for _, version := range []string{"1.0", "1.3", "2.0", "1.10"} {
		if _, err := registry.Register(simpleDefinition(version)); err != nil {
			t.Fatalf("Register(%s): %v", version, err)
		}
	}
	tests := []struct {
		pattern string
		want    string
	}{
		{"Test.Thing", "Test.Thing-2.0"},
		{"Test.Thing-1", "Test.Thing-1.10"},
		{"Test.Thing-1.3", "Test.Thing-1.3"},
	}
	for _, test := range tests {
		t.Run(test.pattern, func(t *testing.T) {
			typ, err := registry.Lookup(ref.MustParseTypeID(test.pattern))
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if typ.ID.String() != test.want {
				t.Errorf("Lookup(%s) = %s, want %s", test.pattern, typ.ID, test.want)
			}
		})
	}

	for _, missing := range []string{"Test.Thing-3", "Test.Thing-1.4", "Test.Other"} {
		_, err := registry.Lookup(ref.MustParseTypeID(missing))
		if !fault.Is(err, fault.Input) {
			t.Errorf("Lookup(%s) err = %v, want input error", missing, err)
		}
	}

	if _, err := registry.Register(simpleDefinition("1.3")); err == nil {
		t.Error("duplicate Register succeeded")
	}
	if got := len(registry.Types()); got != 4 {
		t.Errorf("Types() has %d entries, want 4", got)
	}
}

func TestRegisterErrors(t *testing.T) {
	tests := []struct {
		name       string
		definition Definition
	}{
		{"bad version", Definition{Module: "A", Name: "B", Version: "1", Schema: json.RawMessage(`{}`)}},
		{"missing schema", Definition{Module: "A", Name: "B", Version: "1.0"}},
		{"bad module", Definition{Module: "A-1", Name: "B", Version: "1.0", Schema: json.RawMessage(`{}`)}},
		{"dangling ref", Definition{Module: "A", Name: "B", Version: "1.0",
			Schema: json.RawMessage(`{"properties":{"x":{"$ref":"#/definitions/missing"}}}`)}},
		{"bad reference annotation", Definition{Module: "A", Name: "B", Version: "1.0",
			Schema: json.RawMessage(`{"properties":{"x":{"x-reference":{"types":[1]}}}}`)}},
		{"bad metadata rule", Definition{Module: "A", Name: "B", Version: "1.0",
			Schema: json.RawMessage(`{}`), Metadata: map[string]string{"k": "length(/x"}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewRegistry(nil).Register(test.definition); err == nil {
				t.Error("Register succeeded")
			}
		})
	}
}

func TestValidateOccurrences(t *testing.T) {
	registry := loadTestRegistry(t)
	document := []byte(`{
		"name": "ecoli",
		"reads": "lib/reads1",
		"accession": "GCF_000005845",
		"contigs": [
			{"id": "c1", "source": "lib/raw/2", "children": [{"id": "c1a", "source": "3/4/5"}]},
			{"id": "c2"}
		],
		"aliases": {"zeta/asm": "z", "alpha/asm": "a"}
	}`)
	validation, err := registry.Validate(context.Background(), ref.MustParseTypeID("Genome.Assembly"), document)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if validation.Type.String() != "Genome.Assembly-1.2" {
		t.Errorf("Type = %s", validation.Type)
	}

	type summary struct {
		path  string
		key   bool
		value string
		kind  string
		types string
	}
	var got []summary
	for _, occurrence := range validation.Occurrences {
		var types []string
		for _, typ := range occurrence.Types {
			types = append(types, typ.String())
		}
		got = append(got, summary{
			path:  occurrence.Path.String(),
			key:   occurrence.Key,
			value: occurrence.Value,
			kind:  occurrence.Kind,
			types: strings.Join(types, ","),
		})
	}
	want := []summary{
		{path: "/accession", value: "GCF_000005845", kind: "external"},
		{path: "/aliases/alpha~1asm", key: true, value: "alpha/asm", types: "Genome.Assembly"},
		{path: "/aliases/zeta~1asm", key: true, value: "zeta/asm", types: "Genome.Assembly"},
		{path: "/contigs/0/children/0/source", value: "3/4/5"},
		{path: "/contigs/0/source", value: "lib/raw/2"},
		{path: "/reads", value: "lib/reads1", types: "Reads.Paired-1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("occurrences:\n got %+v\nwant %+v", got, want)
	}
}

func TestValidateFailures(t *testing.T) {
	registry := loadTestRegistry(t)
	ctx := context.Background()
	reads := ref.MustParseTypeID("Reads.Paired")

	tests := []struct {
		name     string
		document string
		contains string
	}{
		{"not json", `{"platform":`, "not valid JSON"},
		{"trailing data", `{"platform":"x"} {}`, "trailing data"},
		{"schema violation", `{"count": 3}`, "failed validation against Reads.Paired-1.0"},
		{"wrong type", `{"platform": 7}`, "failed validation"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := registry.Validate(ctx, reads, []byte(test.document))
			if !fault.Is(err, fault.Input) {
				t.Fatalf("err = %v, want input error", err)
			}
			if !strings.Contains(err.Error(), test.contains) {
				t.Errorf("err = %q, want it to contain %q", err, test.contains)
			}
		})
	}

	_, err := registry.Validate(ctx, ref.MustParseTypeID("No.Such"), []byte(`{}`))
	if !fault.Is(err, fault.Input) || !strings.Contains(err.Error(), "Unable to locate type No.Such") {
		t.Errorf("unknown type err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := registry.Validate(cancelled, reads, []byte(`{"platform":"x"}`)); err == nil {
		t.Error("Validate with cancelled context succeeded")
	}
}

func TestExtractAndMetadata(t *testing.T) {
	registry := loadTestRegistry(t)
	document := []byte(`{"name":"ecoli","contigs":[{"id":"c1","source":"1/2/3"},{"id":"c2"}]}`)
	validation, err := registry.Validate(context.Background(), ref.MustParseTypeID("Genome.Assembly-1"), document)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	extract, err := validation.Extract(validation.Document)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if string(extract) != `{"contigs":[{"id":"c1"},{"id":"c2"}],"name":"ecoli"}` {
		t.Errorf("Extract = %s", extract)
	}

	metadata, err := validation.Metadata(validation.Document)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	want := map[string]string{"name": "ecoli", "contigs": "2"}
	if !reflect.DeepEqual(metadata, want) {
		t.Errorf("Metadata = %v, want %v", metadata, want)
	}

	reads, err := registry.Validate(context.Background(), ref.MustParseTypeID("Reads.Paired-1.0"),
		[]byte(`{"platform":"illumina","count":12345678901234567890}`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	metadata, err = reads.Metadata(reads.Document)
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if metadata["count"] != "12345678901234567890" || metadata["platform"] != "illumina" {
		t.Errorf("Metadata = %v", metadata)
	}
	if extract, _ := reads.Extract(reads.Document); extract != nil {
		t.Errorf("Extract without searchable paths = %s", extract)
	}
}

func TestMetadataNotScalar(t *testing.T) {
	registry := NewRegistry(nil)
	_, err := registry.Register(Definition{
		Module:   "Test",
		Name:     "Nested",
		Version:  "1.0",
		Schema:   json.RawMessage(`{"type":"object"}`),
		Metadata: map[string]string{"inner": "/inner", "flag": "length(/flag)"},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	validation, err := registry.Validate(context.Background(), ref.MustParseTypeID("Test.Nested"), []byte(`{"inner":{"a":1}}`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := validation.Metadata(validation.Document); !fault.Is(err, fault.Input) {
		t.Errorf("Metadata err = %v, want input error", err)
	}
}
