// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/workspace"
)

// createFlags are shared by create and clone.
type createFlags struct {
	description string
	globalRead  bool
	metadata    map[string]string
}

func (f *createFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.description, "description", "", "workspace description")
	flagSet.BoolVar(&f.globalRead, "global-read", false, "make the workspace readable by everyone")
	flagSet.StringToStringVar(&f.metadata, "meta", nil, "metadata key=value (repeatable)")
}

func (f *createFlags) params(name string) workspace.CreateParams {
	return workspace.CreateParams{
		Name:        name,
		Description: f.description,
		Metadata:    f.metadata,
		GlobalRead:  f.globalRead,
	}
}

func workspaceCommand(options *globalOptions) *command {
	var (
		create  createFlags
		clone   createFlags
		exclude []string
		list    struct {
			owners        []string
			minimum       string
			excludeGlobal bool
			showDeleted   bool
			metadata      map[string]string
		}
		metaSet    map[string]string
		metaRemove []string
	)

	// single runs fn on the workspace named by the first argument.
	single := func(fn func(ctx context.Context, s *session, locator ref.WorkspaceLocator, args []string) error) func(context.Context, *session, []string) error {
		return func(ctx context.Context, s *session, args []string) error {
			locator, err := parseWorkspace(args[0])
			if err != nil {
				return err
			}
			return fn(ctx, s, locator, args[1:])
		}
	}

	return &command{
		name:    "workspace",
		summary: "Create, inspect, and manage workspaces",
		subcommands: []*command{
			storeCommand(options, "create", "Create a workspace", "<name>", 1, create.add,
				func(ctx context.Context, s *session, args []string) error {
					info, err := s.service.CreateWorkspace(ctx, s.caller, create.params(args[0]))
					if err != nil {
						return err
					}
					return printJSON(info)
				}),
			storeCommand(options, "clone", "Copy a workspace with its full object history", "<source> <name>", 2,
				func(flagSet *pflag.FlagSet) {
					clone.add(flagSet)
					flagSet.StringSliceVar(&exclude, "exclude", nil, "object name or id to leave out (repeatable)")
				},
				func(ctx context.Context, s *session, args []string) error {
					source, err := parseWorkspace(args[0])
					if err != nil {
						return err
					}
					params := workspace.CloneParams{Source: source, CreateParams: clone.params(args[1])}
					for _, text := range exclude {
						locator, err := ref.ParseObjectLocator(text)
						if err != nil {
							return err
						}
						params.Exclude = append(params.Exclude, locator)
					}
					info, err := s.service.CloneWorkspace(ctx, s.caller, params)
					if err != nil {
						return err
					}
					return printJSON(info)
				}),
			storeCommand(options, "info", "Show workspace information", "<workspace>", 1, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, _ []string) error {
					info, err := s.service.GetWorkspaceInfo(ctx, s.caller, locator)
					if err != nil {
						return err
					}
					return printJSON(info)
				})),
			storeCommand(options, "description", "Print the full workspace description", "<workspace>", 1, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, _ []string) error {
					description, err := s.service.GetWorkspaceDescription(ctx, s.caller, locator)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(stdout, description)
					return err
				})),
			storeCommand(options, "list", "List workspaces visible to the caller", "", 0,
				func(flagSet *pflag.FlagSet) {
					flagSet.StringSliceVar(&list.owners, "owner", nil, "only workspaces owned by these users")
					flagSet.StringVar(&list.minimum, "min-permission", "", "lowest permission held (read, write, admin, owner)")
					flagSet.BoolVar(&list.excludeGlobal, "exclude-global", false, "leave out workspaces readable only globally")
					flagSet.BoolVar(&list.showDeleted, "show-deleted", false, "include deleted workspaces the caller owns")
					flagSet.StringToStringVar(&list.metadata, "meta", nil, "required metadata key=value (repeatable)")
				},
				func(ctx context.Context, s *session, _ []string) error {
					owners, err := parseUsers(list.owners)
					if err != nil {
						return err
					}
					minimum, err := parseMinimum(list.minimum)
					if err != nil {
						return err
					}
					infos, err := s.service.ListWorkspaces(ctx, s.caller, workspace.ListWorkspacesParams{
						Owners:        owners,
						MinPermission: minimum,
						ExcludeGlobal: list.excludeGlobal,
						ShowDeleted:   list.showDeleted,
						Metadata:      list.metadata,
					})
					if err != nil {
						return err
					}
					if infos == nil {
						infos = []workspace.WorkspaceInformation{}
					}
					return printJSON(infos)
				}),
			storeCommand(options, "rename", "Rename a workspace", "<workspace> <name>", 2, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, args []string) error {
					info, err := s.service.RenameWorkspace(ctx, s.caller, locator, args[0])
					if err != nil {
						return err
					}
					return printJSON(info)
				})),
			storeCommand(options, "set-description", "Replace the workspace description", "<workspace> <text>", 2, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, args []string) error {
					return s.service.SetWorkspaceDescription(ctx, s.caller, locator, args[0])
				})),
			storeCommand(options, "set-meta", "Set and remove workspace metadata keys", "<workspace>", 1,
				func(flagSet *pflag.FlagSet) {
					flagSet.StringToStringVar(&metaSet, "set", nil, "key=value to set (repeatable)")
					flagSet.StringSliceVar(&metaRemove, "remove", nil, "key to remove (repeatable)")
				},
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, _ []string) error {
					info, err := s.service.SetWorkspaceMetadata(ctx, s.caller, locator, metaSet, metaRemove)
					if err != nil {
						return err
					}
					return printJSON(info)
				})),
			storeCommand(options, "lock", "Permanently lock a workspace against modification", "<workspace>", 1, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, _ []string) error {
					info, err := s.service.LockWorkspace(ctx, s.caller, locator)
					if err != nil {
						return err
					}
					return printJSON(info)
				})),
			storeCommand(options, "delete", "Delete a workspace", "<workspace>", 1, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, _ []string) error {
					return s.service.DeleteWorkspace(ctx, s.caller, locator)
				})),
			storeCommand(options, "undelete", "Restore a deleted workspace", "<workspace>", 1, nil,
				single(func(ctx context.Context, s *session, locator ref.WorkspaceLocator, _ []string) error {
					info, err := s.service.UndeleteWorkspace(ctx, s.caller, locator)
					if err != nil {
						return err
					}
					return printJSON(info)
				})),
		},
	}
}
