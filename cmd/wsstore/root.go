// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wsstore/lib/backend/sqlitebackend"
	"github.com/bureau-foundation/wsstore/lib/permission"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/version"
)

func rootCommand() *command {
	options := &globalOptions{}
	return &command{
		name:    "wsstore",
		summary: "Versioned, access-controlled store for schema-typed documents.",
		subcommands: []*command{
			{
				name:    "version",
				summary: "Print version information",
				args:    0,
				run: func([]string) error {
					fmt.Fprintf(stdout, "wsstore %s\n", version.Full(sqlitebackend.SchemaVersion))
					return nil
				},
			},
			storeCommand(options, "init", "Create the store directories and database", "", 0, nil,
				func(ctx context.Context, s *session, _ []string) error {
					return printJSON(map[string]any{
						"schema_version": sqlitebackend.SchemaVersion,
						"types":          len(s.registry.Types()),
					})
				}),
			storeCommand(options, "types", "List the registered document types", "", 0, nil,
				func(ctx context.Context, s *session, _ []string) error {
					names := []string{}
					for _, id := range s.registry.Types() {
						names = append(names, id.String())
					}
					return printJSON(names)
				}),
			workspaceCommand(options),
			objectCommand(options),
			permissionCommand(options),
		},
	}
}

// storeCommand builds a leaf command that runs fn against an open
// store. flags adds the command's own flags; the global ones are
// always present.
func storeCommand(options *globalOptions, name, summary, usage string, args int, flags func(*pflag.FlagSet), fn func(ctx context.Context, s *session, args []string) error) *command {
	return &command{
		name:    name,
		summary: summary,
		usage:   usage,
		args:    args,
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
			options.addFlags(flagSet)
			if flags != nil {
				flags(flagSet)
			}
			return flagSet
		},
		run: func(positional []string) error {
			return withSession(options, func(ctx context.Context, s *session) error {
				return fn(ctx, s, positional)
			})
		},
	}
}

func parseWorkspace(s string) (ref.WorkspaceLocator, error) {
	return ref.ParseWorkspaceLocator(s)
}

func parseReferences(args []string) ([]ref.ObjectIdentifier, error) {
	identifiers := make([]ref.ObjectIdentifier, len(args))
	for i, arg := range args {
		identifier, err := ref.ParseReference(arg)
		if err != nil {
			return nil, err
		}
		identifiers[i] = identifier
	}
	return identifiers, nil
}

func parseUsers(handles []string) ([]ref.User, error) {
	users := make([]ref.User, 0, len(handles))
	for _, handle := range handles {
		user, err := ref.ParseUser(handle)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// parseMinimum parses an optional permission floor.
func parseMinimum(s string) (permission.Permission, error) {
	if s == "" {
		return permission.None, nil
	}
	return permission.ParsePermission(s)
}

// requireArgs checks a variadic command got at least n arguments.
func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("expected %s", usage)
	}
	return nil
}
