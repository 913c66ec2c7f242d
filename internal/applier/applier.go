// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package applier delivers a commit's changed-key set to an external
// applier process, in whichever of three modes the caller needs: start it
// and move on (Deliver), wait for it to finish and collect its result
// (DeliverAndWait), or wait for it while forwarding its output live
// (DeliverStream).
//
// Feature: CORE_APPLIER
// Spec: spec/core/applier.md
package applier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"settingsd/internal/errs"
	"settingsd/internal/key"
	"settingsd/pkg/executil"
)

// Command names the external applier process and the arguments it should
// be started with; the changed-key JSON array is always delivered on its
// standard input, never as an argument.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
}

// Deliver serializes changed as a JSON array of key texts and starts the
// applier process described by cmd, writing that array to its stdin. The
// applier's own execution is not awaited; only a failure to start it is
// reported. This is the default mode `settingsd apply` uses: the applier
// outlives the CLI invocation that triggered it.
func Deliver(ctx context.Context, runner executil.Runner, cmd Command, changed []key.Key) error {
	execCmd, err := toExecCommand(cmd, changed)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx, execCmd); err != nil {
		return fmt.Errorf("starting applier %q: %w", cmd.Name, err)
	}
	return nil
}

// DeliverAndWait is like Deliver but waits for the applier to exit and
// returns its result, for operators who invoke `settingsd apply --wait`
// from a script and need to know whether the applier itself succeeded.
func DeliverAndWait(ctx context.Context, runner executil.Runner, cmd Command, changed []key.Key) (*executil.Result, error) {
	execCmd, err := toExecCommand(cmd, changed)
	if err != nil {
		return nil, err
	}
	result, err := runner.Run(ctx, execCmd)
	if err != nil {
		return result, fmt.Errorf("running applier %q: %w", cmd.Name, err)
	}
	return result, nil
}

// DeliverStream is like DeliverAndWait but forwards the applier's combined
// stdout/stderr to output as it runs, for `settingsd apply --follow`, where
// an operator is watching the terminal interactively.
func DeliverStream(ctx context.Context, runner executil.Runner, cmd Command, changed []key.Key, output io.Writer) error {
	execCmd, err := toExecCommand(cmd, changed)
	if err != nil {
		return err
	}
	if err := runner.RunStream(ctx, execCmd, output); err != nil {
		return fmt.Errorf("running applier %q: %w", cmd.Name, err)
	}
	return nil
}

// toExecCommand serializes changed as a JSON array of key texts and builds
// the executil.Command that delivers it on the applier's stdin.
func toExecCommand(cmd Command, changed []key.Key) (executil.Command, error) {
	texts := make([]string, len(changed))
	for i, k := range changed {
		texts[i] = k.AsText()
	}
	payload, err := json.Marshal(texts)
	if err != nil {
		return executil.Command{}, errs.Serialization("changed-keys", err)
	}
	return executil.Command{
		Name:  cmd.Name,
		Args:  cmd.Args,
		Dir:   cmd.Dir,
		Env:   cmd.Env,
		Stdin: bytes.NewReader(payload),
	}, nil
}
