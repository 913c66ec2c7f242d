// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package datastore defines the scope-aware key/value capability shared by
// every concrete backend (in-memory, filesystem): a two-phase pending/live
// store with an attached metadata side-table.
//
// Feature: CORE_DATASTORE
// Spec: spec/core/datastore.md
package datastore

// Scope is a two-variant tag, never a boolean, because its name appears in
// user-facing paths and log lines.
type Scope int

const (
	// Pending is the staging scope writes land in by default.
	Pending Scope = iota
	// Live is the committed scope read by external consumers and the
	// materialization target.
	Live
)

// String renders the scope the same way it appears on disk, so log
// messages and paths agree.
func (s Scope) String() string {
	switch s {
	case Pending:
		return "pending"
	case Live:
		return "live"
	default:
		return "unknown"
	}
}
