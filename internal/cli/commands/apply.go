// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Feature: CLI_APPLY
// Spec: spec/cli/apply.md
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"settingsd/internal/applier"
	"settingsd/internal/controller"
	"settingsd/pkg/executil"
	"settingsd/pkg/logging"
)

// applierConfig names the external applier's command line, loaded from an
// optional YAML document so operators can configure it without a rebuild.
type applierConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
}

// NewApplyCommand returns the `settingsd apply` command: it commits Pending
// into Live, then hands the changed-key set to an external applier process.
func NewApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Commit Pending into Live and deliver the changed keys to an applier process",
		RunE:  runApply,
	}
	cmd.Flags().String("applier-config", "", "path to a YAML document naming the applier command")
	cmd.Flags().String("applier", "", "applier command to run, overriding --applier-config's command")
	cmd.Flags().Bool("wait", false, "wait for the applier to exit and report its result, instead of firing and forgetting")
	cmd.Flags().Bool("follow", false, "wait for the applier to exit, forwarding its output to this command's own stdout")
	return cmd
}

func runApply(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, logger, err := OpenStore(cmd)
	if err != nil {
		return err
	}

	cfg, err := resolveApplierConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Command == "" {
		return fmt.Errorf("no applier command configured: pass --applier or --applier-config")
	}
	wait, err := cmd.Flags().GetBool("wait")
	if err != nil {
		return err
	}
	follow, err := cmd.Flags().GetBool("follow")
	if err != nil {
		return err
	}
	if wait && follow {
		return fmt.Errorf("--wait and --follow are mutually exclusive")
	}

	changed, err := controller.Commit(ctx, store)
	if err != nil {
		return err
	}
	logger.Info("committed pending into live", logging.NewField("changed", len(changed)))

	runner := executil.NewRunner()
	deliverCmd := applier.Command{Name: cfg.Command, Args: cfg.Args, Dir: cfg.Dir, Env: cfg.Env}

	switch {
	case follow:
		if err := applier.DeliverStream(ctx, runner, deliverCmd, changed, cmd.OutOrStdout()); err != nil {
			return err
		}
		logger.Info("applier finished", logging.NewField("command", cfg.Command))
	case wait:
		result, err := applier.DeliverAndWait(ctx, runner, deliverCmd, changed)
		if err != nil {
			return err
		}
		logger.Info("applier finished",
			logging.NewField("command", cfg.Command),
			logging.NewField("exit-code", result.ExitCode),
		)
		return printJSON(cmd, result)
	default:
		if err := applier.Deliver(ctx, runner, deliverCmd, changed); err != nil {
			return err
		}
		logger.Info("delivered changed keys to applier", logging.NewField("command", cfg.Command))
	}
	return nil
}

func resolveApplierConfig(cmd *cobra.Command) (applierConfig, error) {
	var cfg applierConfig

	configPath, err := cmd.Flags().GetString("applier-config")
	if err != nil {
		return cfg, err
	}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("reading applier config %q: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing applier config %q: %w", configPath, err)
		}
	}

	applierFlag, err := cmd.Flags().GetString("applier")
	if err != nil {
		return cfg, err
	}
	if applierFlag != "" {
		cfg.Command = applierFlag
	}
	return cfg, nil
}
