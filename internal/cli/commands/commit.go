// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_COMMIT
// Spec: spec/cli/commit.md
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"settingsd/internal/controller"
	"settingsd/pkg/logging"
)

// NewCommitCommand returns the `settingsd commit` command.
func NewCommitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Promote Pending settings into Live and print the changed keys",
		RunE:  runCommit,
	}
}

func runCommit(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, logger, err := OpenStore(cmd)
	if err != nil {
		return err
	}

	changed, err := controller.Commit(ctx, store)
	if err != nil {
		return err
	}
	logger.Info("committed pending into live", logging.NewField("changed", len(changed)))

	texts := make([]string, len(changed))
	for i, k := range changed {
		texts[i] = k.AsText()
	}
	return printJSON(cmd, texts)
}
