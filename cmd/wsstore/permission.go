// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/bureau-foundation/wsstore/lib/permission"
)

func permissionCommand(options *globalOptions) *command {
	return &command{
		name:    "permission",
		summary: "Grant and inspect workspace permissions",
		subcommands: []*command{
			storeCommand(options, "set", "Set users' permission on a workspace", "<workspace> <level> <user>...", -1, nil,
				func(ctx context.Context, s *session, args []string) error {
					if err := requireArgs(args, 3, "<workspace> <level> <user>..."); err != nil {
						return err
					}
					locator, err := parseWorkspace(args[0])
					if err != nil {
						return err
					}
					level, err := permission.ParsePermission(args[1])
					if err != nil {
						return err
					}
					users, err := parseUsers(args[2:])
					if err != nil {
						return err
					}
					return s.service.SetPermissions(ctx, s.caller, locator, level, users)
				}),
			storeCommand(options, "global", "Set whether everyone can read a workspace", "<workspace> <none|read>", 2, nil,
				func(ctx context.Context, s *session, args []string) error {
					locator, err := parseWorkspace(args[0])
					if err != nil {
						return err
					}
					level, err := permission.ParsePermission(args[1])
					if err != nil {
						return err
					}
					return s.service.SetGlobalPermission(ctx, s.caller, locator, level)
				}),
			storeCommand(options, "get", "Show the permissions visible to the caller", "<workspace>", 1, nil,
				func(ctx context.Context, s *session, args []string) error {
					locator, err := parseWorkspace(args[0])
					if err != nil {
						return err
					}
					grants, err := s.service.GetPermissions(ctx, s.caller, locator)
					if err != nil {
						return err
					}
					listing := make(map[string]string, len(grants))
					for user, level := range grants {
						listing[user.String()] = level.String()
					}
					return printJSON(listing)
				}),
		},
	}
}
