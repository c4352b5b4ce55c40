// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/bureau-foundation/wsstore/lib/fault"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(args []string) error {
	return rootCommand().execute(args)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// exitCode maps an error's fault kind to a process exit status so
// scripts can tell user errors from store failures.
func exitCode(err error) int {
	switch fault.KindOf(err) {
	case fault.Input:
		return 2
	case fault.Authorization, fault.Inaccessible:
		return 3
	case fault.NotFound, fault.Deleted:
		return 4
	case fault.Resource:
		return 5
	case fault.Integrity:
		return 6
	default:
		return 1
	}
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	data = append(data, '\n')
	_, err = stdout.Write(data)
	return err
}
