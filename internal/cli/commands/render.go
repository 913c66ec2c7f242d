// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_RENDER
// Spec: spec/cli/render.md
package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"settingsd/internal/controller"
	"settingsd/internal/datastore"
	"settingsd/internal/materialize"
	"settingsd/pkg/logging"
)

// NewRenderCommand returns the `settingsd render` command: it materializes
// the configuration files owned by the given, already-committed service
// names against Live settings.
func NewRenderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render configuration files for the given services against Live settings",
		RunE:  runRender,
	}
	cmd.Flags().String("services", "", "comma-separated service names to render configuration files for")
	_ = cmd.MarkFlagRequired("services")
	return cmd
}

func runRender(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, logger, err := OpenStore(cmd)
	if err != nil {
		return err
	}

	servicesFlag, err := cmd.Flags().GetString("services")
	if err != nil {
		return fmt.Errorf("resolving --services: %w", err)
	}
	names := splitNonEmpty(servicesFlag)
	if len(names) == 0 {
		return fmt.Errorf("--services must name at least one service")
	}

	services, err := controller.GetServicesNames(ctx, store, names, datastore.Live)
	if err != nil {
		return err
	}
	fileNames := materialize.AffectedConfigurationFileNames(services)
	if len(fileNames) == 0 {
		logger.Info("no configuration files to render", logging.NewField("services", names))
		return nil
	}

	configFiles, err := controller.GetConfigurationFilesNames(ctx, store, fileNames, datastore.Live)
	if err != nil {
		return err
	}
	settings, err := controller.GetSettings(ctx, store, datastore.Live)
	if err != nil {
		return err
	}

	rendered, err := materialize.Render(configFiles, *settings, nil)
	if err != nil {
		return err
	}
	if err := materialize.Write(rendered); err != nil {
		return err
	}

	logger.Info("rendered configuration files",
		logging.NewField("services", names),
		logging.NewField("files", len(rendered)),
	)
	return nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
