// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"

	"github.com/bureau-foundation/wsstore/lib/ref"
)

type sampleRow struct {
	Saver      ref.User          `json:"saver"`
	References []ref.Address     `json:"references"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Size       int64             `json:"size"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRow{
		Saver:      ref.MustParseUser("alice"),
		References: []ref.Address{{Workspace: 5, Object: 2, Version: 1}, {Workspace: 7, Object: 1, Version: 3}},
		Metadata:   map[string]string{"organism": "E. coli"},
		Size:       21,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRow
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Saver != original.Saver || decoded.Size != original.Size {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
	if len(decoded.References) != 2 || decoded.References[1] != original.References[1] {
		t.Errorf("references = %v, want %v", decoded.References, original.References)
	}
	if decoded.Metadata["organism"] != "E. coli" {
		t.Errorf("metadata = %v", decoded.Metadata)
	}
}

func TestAddressesEncodeAsText(t *testing.T) {
	data, err := Marshal(ref.Address{Workspace: 5, Object: 2, Version: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if diagnostic != `"5/2/1"` {
		t.Errorf("diagnostic = %s, want \"5/2/1\"", diagnostic)
	}
}

func TestMapOrderIsDeterministic(t *testing.T) {
	first := map[string]string{"zeta": "1", "alpha": "2", "mid": "3"}
	second := map[string]string{"mid": "3", "zeta": "1", "alpha": "2"}

	a, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := Marshal(second)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("map encodings differ: %x != %x", a, b)
	}
}

func TestAnyMapsDecodeWithStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"nested": map[string]any{"k": "v"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded %T, want map[string]any", decoded)
	}
	if _, ok := outer["nested"].(map[string]any); !ok {
		t.Fatalf("nested %T, want map[string]any", outer["nested"])
	}
}

func TestUnmarshalRejectsBadUser(t *testing.T) {
	data, err := Marshal(map[string]string{"saver": "bad user"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var row sampleRow
	err = Unmarshal(data, &row)
	if err == nil {
		t.Errorf("Unmarshal accepted saver %q", row.Saver)
	}
}
