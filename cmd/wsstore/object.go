// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/wsstore/lib/provenance"
	"github.com/bureau-foundation/wsstore/lib/ref"
	"github.com/bureau-foundation/wsstore/lib/workspace"
)

// readInput reads a file, or standard input for "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func objectCommand(options *globalOptions) *command {
	var (
		save struct {
			typeName   string
			name       string
			id         int64
			metadata   map[string]string
			hidden     bool
			provenance string
		}
		get struct {
			paths        []string
			strict       bool
			ignoreErrors bool
			noData       bool
		}
		infoIgnoreErrors bool
		list             struct {
			workspaces    []string
			typeName      string
			minimum       string
			savedBy       []string
			metadata      map[string]string
			showHidden    bool
			showDeleted   bool
			allVersions   bool
			excludeGlobal bool
			limit         int
		}
	)

	bulk := func(summary string, apply func(ctx context.Context, s *session, identifiers []ref.ObjectIdentifier) error) func(string) *command {
		return func(name string) *command {
			return storeCommand(options, name, summary, "<reference>...", -1, nil,
				func(ctx context.Context, s *session, args []string) error {
					if err := requireArgs(args, 1, "<reference>..."); err != nil {
						return err
					}
					identifiers, err := parseReferences(args)
					if err != nil {
						return err
					}
					return apply(ctx, s, identifiers)
				})
		}
	}
	setHidden := func(hidden bool) func(context.Context, *session, []ref.ObjectIdentifier) error {
		return func(ctx context.Context, s *session, identifiers []ref.ObjectIdentifier) error {
			return s.service.SetObjectsHidden(ctx, s.caller, identifiers, hidden)
		}
	}
	setDeleted := func(deleted bool) func(context.Context, *session, []ref.ObjectIdentifier) error {
		return func(ctx context.Context, s *session, identifiers []ref.ObjectIdentifier) error {
			return s.service.SetObjectsDeleted(ctx, s.caller, identifiers, deleted)
		}
	}

	return &command{
		name:    "object",
		summary: "Save, read, and manage objects",
		subcommands: []*command{
			storeCommand(options, "save", "Save a JSON document as a new object version", "<workspace> <file|->", 2,
				func(flagSet *pflag.FlagSet) {
					flagSet.StringVarP(&save.typeName, "type", "t", "", "document type, e.g. Genome.Assembly-1.2 (required)")
					flagSet.StringVarP(&save.name, "name", "n", "", "object name")
					flagSet.Int64Var(&save.id, "id", 0, "existing object id")
					flagSet.StringToStringVar(&save.metadata, "meta", nil, "metadata key=value (repeatable)")
					flagSet.BoolVar(&save.hidden, "hidden", false, "hide the object when it is created")
					flagSet.StringVar(&save.provenance, "provenance", "", "JSON file holding a list of provenance actions")
				},
				func(ctx context.Context, s *session, args []string) error {
					if save.typeName == "" {
						return fmt.Errorf("--type is required")
					}
					locator, err := parseWorkspace(args[0])
					if err != nil {
						return err
					}
					data, err := readInput(args[1])
					if err != nil {
						return fmt.Errorf("reading document: %w", err)
					}
					object := workspace.SaveObject{
						Name:     save.name,
						ObjectID: save.id,
						Type:     save.typeName,
						Data:     data,
						Metadata: save.metadata,
						Hidden:   save.hidden,
					}
					if save.provenance != "" {
						raw, err := os.ReadFile(save.provenance)
						if err != nil {
							return fmt.Errorf("reading provenance: %w", err)
						}
						var actions []provenance.Action
						if err := json.Unmarshal(raw, &actions); err != nil {
							return fmt.Errorf("parsing provenance %s: %w", save.provenance, err)
						}
						object.Provenance = actions
					}
					infos, err := s.service.SaveObjects(ctx, s.caller, workspace.SaveParams{
						Workspace: locator,
						Objects:   []workspace.SaveObject{object},
					})
					if err != nil {
						return err
					}
					return printJSON(infos[0])
				}),
			storeCommand(options, "get", "Print object versions with their documents", "<reference>...", -1,
				func(flagSet *pflag.FlagSet) {
					flagSet.StringArrayVarP(&get.paths, "path", "p", nil, "JSON pointer to include; * matches any element (repeatable)")
					flagSet.BoolVar(&get.strict, "strict", false, "fail when a path selects nothing")
					flagSet.BoolVar(&get.ignoreErrors, "ignore-errors", false, "print null for objects that cannot be read")
					flagSet.BoolVar(&get.noData, "no-data", false, "omit documents")
				},
				func(ctx context.Context, s *session, args []string) error {
					if err := requireArgs(args, 1, "<reference>..."); err != nil {
						return err
					}
					identifiers, err := parseReferences(args)
					if err != nil {
						return err
					}
					specifications := make([]workspace.ObjectSpecification, len(identifiers))
					for i, identifier := range identifiers {
						specifications[i] = workspace.ObjectSpecification{
							Identifier:  identifier,
							Paths:       get.paths,
							StrictPaths: get.strict,
						}
					}
					data, err := s.service.GetObjects(ctx, s.caller, workspace.GetParams{
						Objects:      specifications,
						IgnoreErrors: get.ignoreErrors,
						NoData:       get.noData,
					})
					if err != nil {
						return err
					}
					return printJSON(data)
				}),
			storeCommand(options, "info", "Print object version information", "<reference>...", -1,
				func(flagSet *pflag.FlagSet) {
					flagSet.BoolVar(&infoIgnoreErrors, "ignore-errors", false, "print null for objects that cannot be read")
				},
				func(ctx context.Context, s *session, args []string) error {
					if err := requireArgs(args, 1, "<reference>..."); err != nil {
						return err
					}
					identifiers, err := parseReferences(args)
					if err != nil {
						return err
					}
					infos, err := s.service.GetObjectInfo(ctx, s.caller, identifiers, infoIgnoreErrors)
					if err != nil {
						return err
					}
					return printJSON(infos)
				}),
			storeCommand(options, "history", "List every version of an object", "<reference>", 1, nil,
				func(ctx context.Context, s *session, args []string) error {
					identifier, err := ref.ParseReference(args[0])
					if err != nil {
						return err
					}
					history, err := s.service.GetObjectHistory(ctx, s.caller, identifier)
					if err != nil {
						return err
					}
					return printJSON(history)
				}),
			storeCommand(options, "list", "List objects by workspace or type", "", 0,
				func(flagSet *pflag.FlagSet) {
					flagSet.StringSliceVarP(&list.workspaces, "workspace", "w", nil, "workspace to list (repeatable)")
					flagSet.StringVarP(&list.typeName, "type", "t", "", "type prefix, e.g. Genome.Assembly or Genome.Assembly-1")
					flagSet.StringVar(&list.minimum, "min-permission", "", "lowest permission held on listed workspaces")
					flagSet.StringSliceVar(&list.savedBy, "saved-by", nil, "only versions saved by these users")
					flagSet.StringToStringVar(&list.metadata, "meta", nil, "required metadata key=value (repeatable)")
					flagSet.BoolVar(&list.showHidden, "show-hidden", false, "include hidden objects")
					flagSet.BoolVar(&list.showDeleted, "show-deleted", false, "include deleted objects")
					flagSet.BoolVar(&list.allVersions, "all-versions", false, "list every version, not just the latest")
					flagSet.BoolVar(&list.excludeGlobal, "exclude-global", false, "leave out workspaces readable only globally")
					flagSet.IntVar(&list.limit, "limit", 0, "maximum number of results; 0 is unlimited")
				},
				func(ctx context.Context, s *session, _ []string) error {
					params := workspace.ListObjectsParams{
						Type:          list.typeName,
						Metadata:      list.metadata,
						ShowHidden:    list.showHidden,
						ShowDeleted:   list.showDeleted,
						AllVersions:   list.allVersions,
						ExcludeGlobal: list.excludeGlobal,
						Limit:         list.limit,
					}
					for _, text := range list.workspaces {
						locator, err := parseWorkspace(text)
						if err != nil {
							return err
						}
						params.Workspaces = append(params.Workspaces, locator)
					}
					var err error
					if params.MinPermission, err = parseMinimum(list.minimum); err != nil {
						return err
					}
					if params.SavedBy, err = parseUsers(list.savedBy); err != nil {
						return err
					}
					infos, err := s.service.ListObjects(ctx, s.caller, params)
					if err != nil {
						return err
					}
					if infos == nil {
						infos = []workspace.ObjectInformation{}
					}
					return printJSON(infos)
				}),
			storeCommand(options, "copy", "Copy an object, or one pinned version of it", "<from> <to>", 2, nil,
				func(ctx context.Context, s *session, args []string) error {
					identifiers, err := parseReferences(args)
					if err != nil {
						return err
					}
					info, err := s.service.CopyObject(ctx, s.caller, identifiers[0], identifiers[1])
					if err != nil {
						return err
					}
					return printJSON(info)
				}),
			storeCommand(options, "revert", "Save an old version again as the newest", "<reference-with-version>", 1, nil,
				func(ctx context.Context, s *session, args []string) error {
					identifier, err := ref.ParseReference(args[0])
					if err != nil {
						return err
					}
					info, err := s.service.RevertObject(ctx, s.caller, identifier)
					if err != nil {
						return err
					}
					return printJSON(info)
				}),
			storeCommand(options, "rename", "Rename an object", "<reference> <name>", 2, nil,
				func(ctx context.Context, s *session, args []string) error {
					identifier, err := ref.ParseReference(args[0])
					if err != nil {
						return err
					}
					info, err := s.service.RenameObject(ctx, s.caller, identifier, args[1])
					if err != nil {
						return err
					}
					return printJSON(info)
				}),
			storeCommand(options, "referencing", "List objects whose latest version references an object", "<reference>", 1, nil,
				func(ctx context.Context, s *session, args []string) error {
					identifier, err := ref.ParseReference(args[0])
					if err != nil {
						return err
					}
					infos, err := s.service.ListReferencingObjects(ctx, s.caller, identifier)
					if err != nil {
						return err
					}
					if infos == nil {
						infos = []workspace.ObjectInformation{}
					}
					return printJSON(infos)
				}),
			bulk("Hide objects from default listings", setHidden(true))("hide"),
			bulk("Show hidden objects in default listings", setHidden(false))("unhide"),
			bulk("Delete objects", setDeleted(true))("delete"),
			bulk("Restore deleted objects", setDeleted(false))("undelete"),
		},
	}
}
