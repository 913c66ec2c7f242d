// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package cli wires together the settingsd root Cobra command and the
// global flags every subcommand shares.
//
// Feature: CLI_OVERVIEW
// Spec: spec/cli/overview.md
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"settingsd/internal/cli/commands"
)

// NewRootCommand constructs the settingsd root Cobra command, wiring
// `get`, `set`, `commit`, `render`, `apply` and `defaults` as subcommands.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("SETTINGSD_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "settingsd",
		Short:         "settingsd – node-local settings management for an immutable OS",
		Long:          "settingsd manages a node's settings through a pending/live datastore, materializes configuration files from live settings, and hands changed keys to an external applier.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags - registered in lexicographic order for deterministic help output.
	cmd.PersistentFlags().String("base-dir", "/var/lib/settingsd", "datastore base directory")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug-level logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of settingsd",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("settingsd version %s\n", version)
		},
	})

	// Subcommands - kept in lexicographic order by .Use for deterministic help output.
	cmd.AddCommand(commands.NewApplyCommand())
	cmd.AddCommand(commands.NewCommitCommand())
	cmd.AddCommand(commands.NewDefaultsCommand())
	cmd.AddCommand(commands.NewGetCommand())
	cmd.AddCommand(commands.NewRenderCommand())
	cmd.AddCommand(commands.NewSetCommand())

	return cmd
}
