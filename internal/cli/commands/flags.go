// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_GLOBAL_FLAGS
// Spec: spec/cli/global-flags.md
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"settingsd/internal/datastore"
	"settingsd/internal/datastore/filesystem"
	"settingsd/pkg/logging"
)

// ResolvedFlags holds the values every subcommand needs to construct its
// store and logger.
type ResolvedFlags struct {
	BaseDir string
	Verbose bool
}

// ResolveFlags reads the persistent --base-dir and --verbose flags through
// cmd.Flags(), which after parsing includes the persistent flags cmd
// inherits from the root command.
func ResolveFlags(cmd *cobra.Command) (*ResolvedFlags, error) {
	baseDir, err := cmd.Flags().GetString("base-dir")
	if err != nil {
		return nil, fmt.Errorf("resolving --base-dir: %w", err)
	}
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("resolving --verbose: %w", err)
	}
	return &ResolvedFlags{BaseDir: baseDir, Verbose: verbose}, nil
}

// OpenStore constructs the filesystem-backed datastore.Store for the
// resolved flags, logging through a logger configured at the resolved
// verbosity.
func OpenStore(cmd *cobra.Command) (datastore.Store, logging.Logger, error) {
	flags, err := ResolveFlags(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewLogger(flags.Verbose)
	store := filesystem.New(flags.BaseDir, logger)
	return store, logger, nil
}
