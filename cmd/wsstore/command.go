// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// command is one node of the CLI tree.
type command struct {
	name    string
	summary string

	// usage is the argument synopsis after the command path, e.g.
	// "<workspace> <file>".
	usage string

	// flags returns a fresh flag set bound to the command's variables.
	// Nil means the command takes no flags.
	flags func() *pflag.FlagSet

	subcommands []*command

	// run receives the positional arguments left after flag parsing.
	run func(args []string) error

	// args is the exact positional argument count, or -1 for any.
	args int

	parent *command
}

// execute parses args and dispatches down the tree.
func (c *command) execute(args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.printHelp(os.Stderr)
		return nil
	}

	if len(c.subcommands) > 0 {
		if len(args) == 0 || strings.HasPrefix(args[0], "-") {
			c.printHelp(os.Stderr)
			return fmt.Errorf("subcommand required")
		}
		for _, sub := range c.subcommands {
			if sub.name == args[0] {
				sub.parent = c
				return sub.execute(args[1:])
			}
		}
		return fmt.Errorf("unknown command %q\n\nRun '%s --help' for usage.", args[0], c.fullName())
	}

	if c.flags != nil {
		flagSet := c.flags()
		flagSet.SetOutput(io.Discard)
		if err := flagSet.Parse(args); err != nil {
			return fmt.Errorf("%s\n\nRun '%s --help' for usage.", err, c.fullName())
		}
		args = flagSet.Args()
	}
	if c.args >= 0 && len(args) != c.args {
		return fmt.Errorf("%s takes %d argument(s), got %d\n\nUsage:\n  %s",
			c.fullName(), c.args, len(args), c.synopsis())
	}
	return c.run(args)
}

func (c *command) printHelp(w io.Writer) {
	if c.summary != "" {
		fmt.Fprintf(w, "%s\n\n", c.summary)
	}
	fmt.Fprintf(w, "Usage:\n  %s\n", c.synopsis())

	if len(c.subcommands) > 0 {
		fmt.Fprintf(w, "\nCommands:\n")
		tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
		for _, sub := range c.subcommands {
			fmt.Fprintf(tw, "  %s\t%s\n", sub.name, sub.summary)
		}
		tw.Flush()
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", c.fullName())
	}

	if c.flags != nil {
		var flagHelp strings.Builder
		flagSet := c.flags()
		flagSet.SetOutput(&flagHelp)
		flagSet.PrintDefaults()
		if flagHelp.Len() > 0 {
			fmt.Fprintf(w, "\nFlags:\n%s", flagHelp.String())
		}
	}
}

func (c *command) synopsis() string {
	if len(c.subcommands) > 0 {
		return c.fullName() + " <command>"
	}
	parts := []string{c.fullName()}
	if c.flags != nil {
		parts = append(parts, "[flags]")
	}
	if c.usage != "" {
		parts = append(parts, c.usage)
	}
	return strings.Join(parts, " ")
}

func (c *command) fullName() string {
	if c.parent == nil {
		return c.name
	}
	return c.parent.fullName() + " " + c.name
}

func isHelpFlag(arg string) bool {
	return arg == "-h" || arg == "--help" || arg == "help"
}
