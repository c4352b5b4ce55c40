// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package docpath

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

func decode(t *testing.T, text string) any {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		t.Fatalf("decoding %s: %v", text, err)
	}
	return doc
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Pointer
	}{
		{"", Pointer{}},
		{"/", Pointer{""}},
		{"/a/b", Pointer{"a", "b"}},
		{"/a~1b/c~0d", Pointer{"a/b", "c~d"}},
		{"/0/1", Pointer{"0", "1"}},
		{"/~01", Pointer{"~1"}},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			got, err := Parse(test.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", test.input, err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", test.input, got, test.want)
			}
			if got.String() != test.input {
				t.Errorf("String() = %q, want %q", got.String(), test.input)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"a/b", "/a~", "/a~2"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if !fault.Is(err, fault.Input) {
				t.Errorf("Parse(%q) err = %v, want input error", input, err)
			}
		})
	}
}

func TestAppendDoesNotAlias(t *testing.T) {
	base := make(Pointer, 1, 4)
	base[0] = "a"
	left := base.Append("b")
	right := base.Append("c")
	if left.String() != "/a/b" || right.String() != "/a/c" {
		t.Errorf("left = %s, right = %s", left, right)
	}
	if base.Index(3).String() != "/a/3" {
		t.Errorf("Index = %s", base.Index(3))
	}
}

func TestGet(t *testing.T) {
	doc := decode(t, `{"a":{"b":[10,{"c":"x"}]},"k/l":true}`)
	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"/a/b/1/c", "x", true},
		{"/k~1l", true, true},
		{"/a/b/2", nil, false},
		{"/a/b/01", nil, false},
		{"/a/b/-1", nil, false},
		{"/a/missing", nil, false},
		{"/k~1l/deeper", nil, false},
	}
	for _, test := range tests {
		t.Run(test.path, func(t *testing.T) {
			got, found := Get(doc, MustParse(test.path))
			if found != test.found {
				t.Fatalf("found = %v, want %v", found, test.found)
			}
			if found && !reflect.DeepEqual(got, test.want) {
				t.Errorf("Get = %#v, want %#v", got, test.want)
			}
		})
	}
	if got, _ := Get(doc, Pointer{}); !reflect.DeepEqual(got, doc) {
		t.Errorf("root Get did not return the document")
	}
}

func TestSelect(t *testing.T) {
	doc := decode(t, `{
		"name": "chr1",
		"meta": {"length": 5, "gc": 0.4, "source": "ncbi"},
		"features": [
			{"id": "f1", "loc": 1},
			{"id": "f2", "loc": 2},
			{"id": "f3", "loc": 3}
		]
	}`)
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"single key", []string{"/name"}, `{"name":"chr1"}`},
		{"nested keys", []string{"/meta/length", "/meta/gc"}, `{"meta":{"length":5,"gc":0.4}}`},
		{"array index compacts", []string{"/features/2/id"}, `{"features":[{"id":"f3"}]}`},
		{"wildcard", []string{"/features/*/id"}, `{"features":[{"id":"f1"},{"id":"f2"},{"id":"f3"}]}`},
		{"whole subtree", []string{"/meta"}, `{"meta":{"length":5,"gc":0.4,"source":"ncbi"}}`},
		{"wildcard over object", []string{"/meta/*"}, `{"meta":{"length":5,"gc":0.4,"source":"ncbi"}}`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var paths []Pointer
			for _, path := range test.paths {
				paths = append(paths, MustParse(path))
			}
			got, err := Select(doc, paths, true)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			want := decode(t, test.want)
			if !reflect.DeepEqual(normalize(t, got), normalize(t, want)) {
				gotJSON, _ := json.Marshal(got)
				t.Errorf("Select = %s, want %s", gotJSON, test.want)
			}
		})
	}
}

func TestSelectMissing(t *testing.T) {
	doc := decode(t, `{"a":{"b":1},"list":[1]}`)
	paths := []Pointer{MustParse("/a/b"), MustParse("/a/zzz"), MustParse("/list/4")}

	_, err := Select(doc, paths, true)
	if !fault.Is(err, fault.Input) {
		t.Fatalf("strict Select err = %v, want input error", err)
	}
	if err.Error() != "Invalid selection: no value at /a/zzz" {
		t.Errorf("message = %q", err.Error())
	}

	got, err := Select(doc, paths, false)
	if err != nil {
		t.Fatalf("lenient Select: %v", err)
	}
	if !reflect.DeepEqual(normalize(t, got), normalize(t, decode(t, `{"a":{"b":1}}`))) {
		t.Errorf("lenient Select = %v", got)
	}

	got, err = Select(doc, []Pointer{MustParse("/nothing")}, false)
	if err != nil || got != nil {
		t.Errorf("empty selection = %v, %v; want nil, nil", got, err)
	}
}

func TestSelectRoot(t *testing.T) {
	doc := decode(t, `{"a":1}`)
	got, err := Select(doc, []Pointer{{}}, true)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("root selection = %v", got)
	}
}

// normalize round-trips through JSON so number representations match.
func normalize(t *testing.T, v any) any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return out
}
