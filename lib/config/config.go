// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/wsstore/lib/ref"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "WSSTORE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for a store instance.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Storage configures where records and blobs live.
	Storage StorageConfig `yaml:"storage"`

	// Limits configures the size governor.
	Limits LimitsConfig `yaml:"limits"`

	// Types configures the type registry.
	Types TypesConfig `yaml:"types"`

	// Admins lists system administrator handles.
	Admins []string `yaml:"admins"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Storage *StorageConfig  `yaml:"storage,omitempty"`
	Limits  *LimitOverrides `yaml:"limits,omitempty"`
}

// StorageConfig configures the persistence backend and blob store.
type StorageConfig struct {
	// Root is the base directory; ${WSSTORE_ROOT} in other paths
	// expands to it.
	Root string `yaml:"root"`

	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// Blobs is the blob store directory.
	Blobs string `yaml:"blobs"`

	// TempDir receives spill files. Empty means os.TempDir().
	TempDir string `yaml:"temp_dir"`

	// Compression is the blob compression: none, lz4, or zstd.
	Compression string `yaml:"compression"`

	// EncryptionKeyFile holds a 32-byte blob encryption key, raw or
	// hex. Empty disables encryption at rest.
	EncryptionKeyFile string `yaml:"encryption_key_file"`

	// PoolSize is the SQLite connection pool size. Zero picks a
	// default from the CPU count.
	PoolSize int `yaml:"pool_size"`
}

// LimitsConfig configures the size governor. Sizes accept integers or
// human-readable strings ("16 MiB", "15MB"). Zero means unlimited
// for object_bytes, response_bytes, and references_per_call.
type LimitsConfig struct {
	MetadataBytes        ByteSize `yaml:"metadata_bytes"`
	ProvenanceBytes      ByteSize `yaml:"provenance_bytes"`
	ExtractBytes         ByteSize `yaml:"extract_bytes"`
	ObjectBytes          ByteSize `yaml:"object_bytes"`
	ResponseBytes        ByteSize `yaml:"response_bytes"`
	ReferencesPerCall    int      `yaml:"references_per_call"`
	BufferThresholdBytes ByteSize `yaml:"buffer_threshold_bytes"`
}

// LimitOverrides is LimitsConfig with every field optional.
type LimitOverrides struct {
	MetadataBytes        *ByteSize `yaml:"metadata_bytes,omitempty"`
	ProvenanceBytes      *ByteSize `yaml:"provenance_bytes,omitempty"`
	ExtractBytes         *ByteSize `yaml:"extract_bytes,omitempty"`
	ObjectBytes          *ByteSize `yaml:"object_bytes,omitempty"`
	ResponseBytes        *ByteSize `yaml:"response_bytes,omitempty"`
	ReferencesPerCall    *int      `yaml:"references_per_call,omitempty"`
	BufferThresholdBytes *ByteSize `yaml:"buffer_threshold_bytes,omitempty"`
}

// TypesConfig configures the type registry.
type TypesConfig struct {
	// Directory holds *.jsonc type definition files.
	Directory string `yaml:"directory"`
}

// ByteSize is a byte count that unmarshals from either a YAML integer
// or a human-readable size string.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var number int64
	if err := node.Decode(&number); err == nil {
		*b = ByteSize(number)
		return nil
	}
	var text string
	if err := node.Decode(&text); err != nil {
		return fmt.Errorf("line %d: byte size must be an integer or a string: %w", node.Line, err)
	}
	parsed, err := humanize.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("line %d: invalid byte size %q: %w", node.Line, text, err)
	}
	*b = ByteSize(parsed)
	return nil
}

// String formats b in IEC units.
func (b ByteSize) String() string {
	if b < 0 {
		return fmt.Sprintf("%d B", int64(b))
	}
	return humanize.IBytes(uint64(b))
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "wsstore")

	return &Config{
		Environment: Development,
		Storage: StorageConfig{
			Root:        defaultRoot,
			Database:    filepath.Join(defaultRoot, "store.db"),
			Blobs:       filepath.Join(defaultRoot, "blobs"),
			Compression: "zstd",
		},
		Limits: LimitsConfig{
			MetadataBytes:        16000,
			ProvenanceBytes:      1000000,
			ExtractBytes:         15000000,
			BufferThresholdBytes: 16 << 20,
		},
	}
}

// Load loads configuration from the WSSTORE_CONFIG environment
// variable. There are no fallbacks: if it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your wsstore.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. The only expansion
// performed is ${HOME}, ${WSSTORE_ROOT} and similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if storage := overrides.Storage; storage != nil {
		if storage.Root != "" {
			c.Storage.Root = storage.Root
		}
		if storage.Database != "" {
			c.Storage.Database = storage.Database
		}
		if storage.Blobs != "" {
			c.Storage.Blobs = storage.Blobs
		}
		if storage.TempDir != "" {
			c.Storage.TempDir = storage.TempDir
		}
		if storage.Compression != "" {
			c.Storage.Compression = storage.Compression
		}
		if storage.EncryptionKeyFile != "" {
			c.Storage.EncryptionKeyFile = storage.EncryptionKeyFile
		}
		if storage.PoolSize != 0 {
			c.Storage.PoolSize = storage.PoolSize
		}
	}

	if limits := overrides.Limits; limits != nil {
		overrideSize(&c.Limits.MetadataBytes, limits.MetadataBytes)
		overrideSize(&c.Limits.ProvenanceBytes, limits.ProvenanceBytes)
		overrideSize(&c.Limits.ExtractBytes, limits.ExtractBytes)
		overrideSize(&c.Limits.ObjectBytes, limits.ObjectBytes)
		overrideSize(&c.Limits.ResponseBytes, limits.ResponseBytes)
		overrideSize(&c.Limits.BufferThresholdBytes, limits.BufferThresholdBytes)
		if limits.ReferencesPerCall != nil {
			c.Limits.ReferencesPerCall = *limits.ReferencesPerCall
		}
	}
}

func overrideSize(target *ByteSize, value *ByteSize) {
	if value != nil {
		*target = *value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"WSSTORE_ROOT": c.Storage.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Storage.Root = expandVars(c.Storage.Root, vars)
	vars["WSSTORE_ROOT"] = c.Storage.Root // Update for dependent paths.

	c.Storage.Database = expandVars(c.Storage.Database, vars)
	c.Storage.Blobs = expandVars(c.Storage.Blobs, vars)
	c.Storage.TempDir = expandVars(c.Storage.TempDir, vars)
	c.Storage.EncryptionKeyFile = expandVars(c.Storage.EncryptionKeyFile, vars)
	c.Types.Directory = expandVars(c.Types.Directory, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Storage.Database == "" {
		errs = append(errs, fmt.Errorf("storage.database is required"))
	}
	if c.Storage.Blobs == "" {
		errs = append(errs, fmt.Errorf("storage.blobs is required"))
	}
	compressions := []string{"none", "lz4", "zstd"}
	if !contains(compressions, c.Storage.Compression) {
		errs = append(errs, fmt.Errorf("storage.compression must be one of: %v", compressions))
	}
	if c.Storage.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("storage.pool_size must not be negative"))
	}

	sizes := []struct {
		name  string
		value ByteSize
	}{
		{"limits.metadata_bytes", c.Limits.MetadataBytes},
		{"limits.provenance_bytes", c.Limits.ProvenanceBytes},
		{"limits.extract_bytes", c.Limits.ExtractBytes},
		{"limits.object_bytes", c.Limits.ObjectBytes},
		{"limits.response_bytes", c.Limits.ResponseBytes},
		{"limits.buffer_threshold_bytes", c.Limits.BufferThresholdBytes},
	}
	for _, size := range sizes {
		if size.value < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", size.name))
		}
	}
	if c.Limits.ReferencesPerCall < 0 {
		errs = append(errs, fmt.Errorf("limits.references_per_call must not be negative"))
	}

	for _, handle := range c.Admins {
		if _, err := ref.ParseUser(handle); err != nil {
			errs = append(errs, fmt.Errorf("admins: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AdminUsers returns the parsed administrator handles. Call Validate
// first; invalid handles are skipped.
func (c *Config) AdminUsers() []ref.User {
	users := make([]ref.User, 0, len(c.Admins))
	for _, handle := range c.Admins {
		if user, err := ref.ParseUser(handle); err == nil {
			users = append(users, user)
		}
	}
	return users
}

// EncryptionKey reads the blob encryption key. Returns nil when no key
// file is configured. The file holds either 32 raw bytes or 64 hex
// characters (surrounding whitespace ignored).
func (c *Config) EncryptionKey() ([]byte, error) {
	if c.Storage.EncryptionKeyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.Storage.EncryptionKeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading encryption key: %w", err)
	}
	if len(data) == 32 {
		return data, nil
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("encryption key file %s must hold 32 raw bytes or 64 hex characters",
			c.Storage.EncryptionKeyFile)
	}
	return key, nil
}

// EnsurePaths creates the configured storage directories if they don't
// exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Storage.Root,
		filepath.Dir(c.Storage.Database),
		c.Storage.Blobs,
		c.Storage.TempDir,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
