// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/wsstore/lib/backend/sqlitebackend"
	"github.com/bureau-foundation/wsstore/lib/blobstore"
	"github.com/bureau-foundation/wsstore/lib/config"
	"github.com/bureau-foundation/wsstore/lib/governor"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/typesys"
	"github.com/bureau-foundation/wsstore/lib/workspace"
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

// globalOptions are the flags every store command accepts.
type globalOptions struct {
	configPath      string
	user            string
	asAdmin         bool
	verbose         bool
	metricsTextfile string
}

func (o *globalOptions) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&o.configPath, "config", "", "config file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVarP(&o.user, "user", "u", os.Getenv("WSSTORE_USER"), "acting user; empty is anonymous (default: $WSSTORE_USER)")
	flagSet.BoolVar(&o.asAdmin, "as-admin", false, "act with the system administrator override")
	flagSet.BoolVarP(&o.verbose, "verbose", "v", false, "log at debug level")
	flagSet.StringVar(&o.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (o *globalOptions) caller() (workspace.Caller, error) {
	if o.user == "" {
		if o.asAdmin {
			return workspace.Caller{}, fmt.Errorf("--as-admin requires --user")
		}
		return workspace.Anonymous, nil
	}
	user, err := ref.ParseUser(o.user)
	if err != nil {
		return workspace.Caller{}, err
	}
	return workspace.Caller{User: user, AsAdmin: o.asAdmin}, nil
}

// newLogger writes text to a terminal and JSON otherwise.
func newLogger(verbose bool) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		options.Level = slog.LevelDebug
	}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}

// session is an open store plus the service over it.
type session struct {
	service  *workspace.Service
	store    *sqlitebackend.Store
	registry *typesys.Registry
	metrics  *prometheus.Registry
	caller   workspace.Caller
	logger   *slog.Logger
	options  *globalOptions
}

func openSession(ctx context.Context, options *globalOptions) (*session, error) {
	caller, err := options.caller()
	if err != nil {
		return nil, err
	}
	cfg, err := options.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(options.verbose)
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	compression, err := blobstore.ParseCompression(cfg.Storage.Compression)
	if err != nil {
		return nil, err
	}
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.Open(blobstore.Config{
		Root:        cfg.Storage.Blobs,
		Compression: compression,
		Key:         key,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	registry := typesys.NewRegistry(logger)
	if cfg.Types.Directory != "" {
		if err := registry.LoadDirectory(cfg.Types.Directory); err != nil {
			return nil, err
		}
	}

	store, err := sqlitebackend.Open(ctx, sqlitebackend.Config{
		Path:     cfg.Storage.Database,
		PoolSize: cfg.Storage.PoolSize,
		Blobs:    blobs,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	metrics := prometheus.NewRegistry()
	service, err := workspace.New(workspace.Config{
		Backend:        store,
		Validator:      registry,
		Limits:         limitsFromConfig(cfg),
		MaxIdentifiers: cfg.Limits.ReferencesPerCall,
		Admins:         permission.NewAdmins(cfg.AdminUsers()...),
		Logger:         logger,
		Registerer:     metrics,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Debug("store opened",
		"environment", string(cfg.Environment),
		"database", cfg.Storage.Database,
		"types", len(registry.Types()),
	)
	return &session{
		service:  service,
		store:    store,
		registry: registry,
		metrics:  metrics,
		caller:   caller,
		logger:   logger,
		options:  options,
	}, nil
}

func limitsFromConfig(cfg *config.Config) governor.Limits {
	return governor.Limits{
		MetadataBytes:   int64(cfg.Limits.MetadataBytes),
		ProvenanceBytes: int64(cfg.Limits.ProvenanceBytes),
		ExtractBytes:    int64(cfg.Limits.ExtractBytes),
		ObjectBytes:     int64(cfg.Limits.ObjectBytes),
		ResponseBytes:   int64(cfg.Limits.ResponseBytes),
		BufferThreshold: int64(cfg.Limits.BufferThresholdBytes),
		TempDir:         cfg.Storage.TempDir,
	}
}

func (s *session) close() error {
	var metricsErr error
	if s.options.metricsTextfile != "" {
		metricsErr = prometheus.WriteToTextfile(s.options.metricsTextfile, s.metrics)
		if metricsErr != nil {
			metricsErr = fmt.Errorf("writing metrics: %w", metricsErr)
		}
	}
	if err := s.store.Close(); err != nil {
		return err
	}
	return metricsErr
}

// withSession opens a session for the duration of fn.
func withSession(options *globalOptions, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signalContext()
	defer stop()
	s, err := openSession(ctx, options)
	if err != nil {
		return err
	}
	runErr := fn(ctx, s)
	closeErr := s.close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}
