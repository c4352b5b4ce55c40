// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package typesys is the structural type validator: it checks a
// document against a registered type's JSON Schema and reports the
// identifier occurrences the schema declares.
//
// A type definition is a JSON-with-comments file:
//
//	{
//	  // Genome assemblies.
//	  "module": "Genome",
//	  "name": "Assembly",
//	  "version": "1.0",
//	  "schema": {
//	    "type": "object",
//	    "properties": {
//	      "reads": {"type": "string", "x-reference": {"types": ["Reads.Paired"]}},
//	      "contigs": {"type": "array", "items": {"type": "string"}}
//	    }
//	  },
//	  "searchable": ["/contigs"],
//	  "metadata": {"contig_count": "length(/contigs)"}
//	}
//
// Two schema extensions mark identifiers. "x-reference" on a string
// schema makes the string an identifier; "x-reference-keys" on an
// object schema makes its keys identifiers. Either may be true or an
// object with "types" (the allowed target types, as type patterns) and
// "kind" (empty for store references, anything else for external
// identifiers the store passes through unchanged).
//
// Occurrences are found by walking the document alongside the schema's
// "properties", "additionalProperties", "items", and local "$ref"
// keywords. Identifiers under composition keywords (allOf, anyOf,
// oneOf) are validated structurally but not reported.
//
// [Registry] is the only [Validator]. Lookups accept "Module.Name"
// (latest version), "Module.Name-M" (latest minor of major M), or an
// absolute type.
package typesys
