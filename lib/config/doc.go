// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for a store
// instance.
//
// Configuration is loaded from a single file specified by either the
// WSSTORE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file supports environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches.
//
// Byte limits accept integers or human-readable sizes ("16 MiB").
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${WSSTORE_ROOT}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Storage, Limits, Types, Admins
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
package config
