// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package workspace is the store's operation surface: workspace
// lifecycle, permissions, and the object version operations built on
// the lower layers.
//
// Every operation takes the acting Caller explicitly. There is no
// ambient request state: the backend, type validator, size limits,
// administrator set, listeners, and clock are all fixed at
// construction through Config. A Service is safe for concurrent use;
// atomicity of each mutation comes from the backend's transactions.
//
// Errors returned to callers are classified with lib/fault so that a
// transport can map them to status codes. Anything unclassified is an
// internal error.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/wsstore/lib/backend"
	"github.com/bureau-foundation/wsstore/lib/clock"
	"github.com/bureau-foundation/wsstore/lib/fault"
	"github.com/bureau-foundation/wsstore/lib/governor"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/refresolve"
	"github.com/bureau-foundation/wsstore/lib/resolve"
	"github.com/bureau-foundation/wsstore/lib/typesys"
)

// DescriptionDisplayLength is the number of characters of a workspace
// description returned in workspace information. Longer descriptions
// are stored whole.
const DescriptionDisplayLength = 1000

// DefaultMaxIdentifiers is the cap on distinct reference identifiers
// in one save call.
const DefaultMaxIdentifiers = 100000

// Caller identifies who is acting. The zero value is an anonymous
// caller.
type Caller struct {
	User ref.User

	// AsAdmin requests the system administrator override, which
	// bypasses workspace permission checks but never the workspace
	// lock. Only members of the administrator set may use it.
	AsAdmin bool
}

// Anonymous is the anonymous caller.
var Anonymous = Caller{}

// As returns a caller acting as user.
func As(user ref.User) Caller { return Caller{User: user} }

// Config holds the collaborators of a Service.
type Config struct {
	Backend   backend.Backend
	Validator typesys.Validator

	// Limits are the size limits. The zero value means
	// governor.DefaultLimits.
	Limits governor.Limits

	// MaxIdentifiers caps distinct reference identifiers per save
	// call. Zero means DefaultMaxIdentifiers.
	MaxIdentifiers int

	// Admins is the system administrator set. Nil means none.
	Admins *permission.Admins

	Listeners []Listener

	// Clock defaults to clock.Real.
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// Registerer receives the service metrics. Nil disables
	// registration; metrics are still collected.
	Registerer prometheus.Registerer
}

// Service implements the workspace and object operations.
type Service struct {
	backend   backend.Backend
	validator typesys.Validator
	limits    governor.Limits
	admins    *permission.Admins
	listeners []Listener
	clock     clock.Clock
	logger    *slog.Logger
	resolver  *resolve.Resolver
	engine    *refresolve.Engine
	metrics   *metrics
}

// New returns a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("workspace service: backend is required")
	}
	if cfg.Validator == nil {
		return nil, fmt.Errorf("workspace service: validator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	limits := cfg.Limits
	if limits == (governor.Limits{}) {
		limits = governor.DefaultLimits()
	}
	admins := cfg.Admins
	if admins == nil {
		admins = permission.NewAdmins()
	}
	maxIdentifiers := cfg.MaxIdentifiers
	if maxIdentifiers == 0 {
		maxIdentifiers = DefaultMaxIdentifiers
	}
	collected, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, err
	}

	s := &Service{
		backend:   cfg.Backend,
		validator: cfg.Validator,
		limits:    limits,
		admins:    admins,
		listeners: cfg.Listeners,
		clock:     clk,
		logger:    logger,
		resolver:  resolve.New(cfg.Backend),
		metrics:   collected,
	}
	s.engine = refresolve.New(refresolve.Config{
		Lookup:         refresolve.LookupFunc(s.lookupReference),
		MaxIdentifiers: maxIdentifiers,
		Logger:         logger,
	})
	return s, nil
}

// Admins returns the administrator set. Changes to it take effect
// immediately.
func (s *Service) Admins() *permission.Admins { return s.admins }

// now returns the current time truncated to the millisecond precision
// the backend stores.
func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

// checkAdmin rejects AsAdmin calls from callers outside the
// administrator set.
func (s *Service) checkAdmin(caller Caller) error {
	if !caller.AsAdmin {
		return nil
	}
	if caller.User.IsZero() || !s.admins.Contains(caller.User) {
		if caller.User.IsZero() {
			return fault.Authorizationf("Anonymous users are not administrators")
		}
		return fault.Authorizationf("User %s is not an administrator", caller.User)
	}
	return nil
}

// access describes the permission a workspace operation needs.
type access struct {
	required permission.Permission
	action   string
	mutating bool
}

var (
	readAccess  = access{required: permission.Read, action: "read"}
	writeAccess = access{required: permission.Write, action: "write to", mutating: true}
	ownerAccess = access{required: permission.Owner, action: "delete", mutating: true}
)

func target(record backend.WorkspaceRecord) permission.Target {
	return permission.Target{ID: record.ID, Name: record.Name, Locked: record.Locked}
}

// authorize checks caller against record. An administrator override
// skips the level check but still honors the lock.
func (s *Service) authorize(caller Caller, record backend.WorkspaceRecord, need access) error {
	if caller.AsAdmin {
		if need.mutating && record.Locked {
			return permission.LockedError(target(record))
		}
		return nil
	}
	return permission.Check(permission.Request{
		User:      caller.User,
		Workspace: target(record),
		ACL:       record.ACL,
		Required:  need.required,
		Action:    need.action,
		Mutating:  need.mutating,
	})
}

// checker returns a resolve option check enforcing need.
func (s *Service) checker(caller Caller, need access) func(backend.WorkspaceRecord) error {
	return func(record backend.WorkspaceRecord) error {
		return s.authorize(caller, record, need)
	}
}

// workspace resolves locator and checks caller's access to it.
func (s *Service) workspace(ctx context.Context, caller Caller, locator ref.WorkspaceLocator, need access, allowDeleted bool) (resolve.Workspace, backend.WorkspaceRecord, error) {
	if err := s.checkAdmin(caller); err != nil {
		return resolve.Workspace{}, backend.WorkspaceRecord{}, err
	}
	return s.resolver.Workspace(ctx, locator, resolve.Options{
		AllowDeleted: allowDeleted,
		Check:        s.checker(caller, need),
	})
}

// internal wraps an unclassified backend failure.
func internal(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var classified fault.Classified
	if errors.As(err, &classified) {
		return err
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
