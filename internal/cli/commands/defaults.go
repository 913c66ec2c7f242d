// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_DEFAULTS
// Spec: spec/cli/defaults.md
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"settingsd/internal/defaults"
	"settingsd/pkg/logging"
)

// NewDefaultsCommand returns the `settingsd defaults` command group.
func NewDefaultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "First-boot defaults loading",
	}
	cmd.AddCommand(newDefaultsLoadCommand())
	return cmd
}

func newDefaultsLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "load <path>",
		Short: "Load a TOML defaults document directly into Live",
		Args:  cobra.ExactArgs(1),
		RunE:  runDefaultsLoad,
	}
}

func runDefaultsLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, logger, err := OpenStore(cmd)
	if err != nil {
		return err
	}

	path := args[0]
	if err := defaults.Load(ctx, store, path); err != nil {
		return err
	}
	logger.Info("loaded defaults into live", logging.NewField("path", path))
	return nil
}
