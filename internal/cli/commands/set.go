// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_SET
// Spec: spec/cli/set.md
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"settingsd/internal/controller"
	"settingsd/pkg/logging"
)

// NewSetCommand returns the `settingsd set` command: it reads raw JSON from
// stdin, decodes it via controller.SettingsInput, and stages it into
// Pending.
func NewSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Stage settings from JSON on stdin into Pending",
		RunE:  runSet,
	}
	cmd.Flags().String("prefix", "", "stage the input under settings.<prefix> rather than settings root")
	return cmd
}

func runSet(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, logger, err := OpenStore(cmd)
	if err != nil {
		return err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return err
	}

	settings, err := controller.SettingsInput(raw)
	if err != nil {
		return err
	}

	if err := controller.SetSettings(ctx, store, prefix, *settings); err != nil {
		return err
	}
	logger.Info("staged settings into pending", logging.NewField("prefix", prefix))
	return nil
}
