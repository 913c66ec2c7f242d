// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package datastore

import (
	"context"

	"settingsd/internal/key"
)

// Store is the capability every backend implements: a scope-aware K/V store
// with an attached metadata side-table. The controller is generic over any
// type satisfying Store; there is no inheritance between backends.
//
// Implementations are not safe for concurrent mutation from multiple
// goroutines across SetKey/SetKeys/Commit; reads may run concurrently with
// each other but not with a Commit.
type Store interface {
	// KeyPopulated reports whether k has a stored value in scope.
	KeyPopulated(ctx context.Context, k key.Key, scope Scope) (bool, error)

	// ListPopulatedKeys returns every populated data key whose dotted text
	// satisfies key.Key.StartsWith(prefix). prefix need not be a valid Key.
	//
	// Over Pending, an unwritten scope yields the empty set, not an error.
	// Over Live, an absent scope is a Corruption error: defaults must have
	// populated it by the time anything calls this.
	ListPopulatedKeys(ctx context.Context, prefix string, scope Scope) ([]key.Key, error)

	// GetKey returns the stored value for k in scope, or ok=false if unset.
	GetKey(ctx context.Context, k key.Key, scope Scope) (value string, ok bool, err error)

	// SetKey stores value for k in scope.
	SetKey(ctx context.Context, k key.Key, value string, scope Scope) error

	// SetKeys stores every entry of values in scope. Writes happen in an
	// unspecified order; if one fails, prior writes in the same call may
	// already be visible on disk (no rollback).
	SetKeys(ctx context.Context, values map[key.Key]string, scope Scope) error

	// GetMetadata returns the metadata value stored under (meta, data), or
	// ok=false if unset. Metadata lives only in the Live scope.
	GetMetadata(ctx context.Context, meta key.Key, data key.Key) (value string, ok bool, err error)

	// SetMetadata stores value under (meta, data) in Live.
	SetMetadata(ctx context.Context, meta key.Key, data key.Key, value string) error

	// GetPrefix returns every populated key under prefix in scope, mapped to
	// its stored value.
	GetPrefix(ctx context.Context, prefix string, scope Scope) (map[key.Key]string, error)

	// Commit promotes all populated Pending data keys under prefix
	// "settings." into Live, then clears Pending. It returns exactly the set
	// of "settings." data keys that were present in Pending immediately
	// before the commit; other Pending keys are neither promoted nor
	// returned. Commit is atomic only at the level the backend can offer
	// ("best-effort" for the filesystem backend); a failure mid-commit is
	// reported as a Corruption or IO error, not silently swallowed.
	Commit(ctx context.Context) ([]key.Key, error)
}
