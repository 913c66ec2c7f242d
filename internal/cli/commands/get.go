// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_GET
// Spec: spec/cli/get.md
package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"settingsd/internal/controller"
	"settingsd/internal/datastore"
)

// NewGetCommand returns the `settingsd get` command.
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print the settings tree as JSON",
		RunE:  runGet,
	}
	cmd.Flags().String("prefix", "", "narrow the result to settings.<prefix>")
	cmd.Flags().Bool("pending", false, "read from Pending instead of Live")
	return cmd
}

func runGet(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, _, err := OpenStore(cmd)
	if err != nil {
		return err
	}

	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return fmt.Errorf("resolving --prefix: %w", err)
	}
	pending, err := cmd.Flags().GetBool("pending")
	if err != nil {
		return fmt.Errorf("resolving --pending: %w", err)
	}

	scope := datastore.Live
	if pending {
		scope = datastore.Pending
	}

	var settings interface{}
	switch {
	case prefix != "":
		settings, err = controller.GetSettingsPrefix(ctx, store, prefix, scope)
	case pending:
		settings, err = controller.GetPendingSettings(ctx, store)
	default:
		settings, err = controller.GetSettings(ctx, store, scope)
	}
	if err != nil {
		return err
	}

	return printJSON(cmd, settings)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
