// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package governor

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/goccy/go-json"
)

// Canonicalize writes doc as compact JSON with object keys sorted
// bytewise. Numbers decoded as json.Number are written as they were
// read. Equal documents always produce identical bytes, which is what
// makes document checksums stable.
func Canonicalize(doc any, w io.Writer) error {
	writer := bufio.NewWriterSize(w, 32*1024)
	if err := writeCanonical(writer, doc); err != nil {
		return err
	}
	return writer.Flush()
}

func writeCanonical(w *bufio.Writer, value any) error {
	switch v := value.(type) {
	case nil:
		_, err := w.WriteString("null")
		return err
	case bool:
		if v {
			_, err := w.WriteString("true")
			return err
		}
		_, err := w.WriteString("false")
		return err
	case json.Number:
		_, err := w.WriteString(v.String())
		return err
	case string:
		return writeScalar(w, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		if err := w.WriteByte('{'); err != nil {
			return err
		}
		for i, key := range keys {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if err := writeScalar(w, key); err != nil {
				return err
			}
			if err := w.WriteByte(':'); err != nil {
				return err
			}
			if err := writeCanonical(w, v[key]); err != nil {
				return err
			}
		}
		return w.WriteByte('}')
	case []any:
		if err := w.WriteByte('['); err != nil {
			return err
		}
		for i, element := range v {
			if i > 0 {
				if err := w.WriteByte(','); err != nil {
					return err
				}
			}
			if err := writeCanonical(w, element); err != nil {
				return err
			}
		}
		return w.WriteByte(']')
	case map[string]string:
		converted := make(map[string]any, len(v))
		for key, text := range v {
			converted[key] = text
		}
		return writeCanonical(w, converted)
	default:
		// float64, integers, and anything else encoding/json-compatible.
		return writeScalar(w, v)
	}
}

func writeScalar(w *bufio.Writer, value any) error {
	data, err := json.MarshalWithOption(value, json.DisableHTMLEscape())
	if err != nil {
		return fmt.Errorf("canonicalizing %T: %w", value, err)
	}
	_, err = w.Write(data)
	return err
}

// CanonicalSize returns the length of doc's canonical encoding.
func CanonicalSize(doc any) (int64, error) {
	var counter countingWriter
	if err := Canonicalize(doc, &counter); err != nil {
		return 0, err
	}
	return int64(counter), nil
}

// MetadataSize returns the canonical JSON size of a metadata map, the
// measure CheckMetadata applies to.
func MetadataSize(metadata map[string]string) int64 {
	if len(metadata) == 0 {
		return 0
	}
	size, err := CanonicalSize(metadata)
	if err != nil {
		// Strings always encode.
		panic(err)
	}
	return size
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type countingWriter int64

func (c *countingWriter) Write(p []byte) (int, error) {
	*c += countingWriter(len(p))
	return len(p), nil
}
