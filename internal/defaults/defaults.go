// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package defaults loads the first-boot TOML document that seeds Live
// before any commit has occurred, per the on-disk format described for
// settingsd's defaults loader.
//
// Feature: CORE_DEFAULTS
// Spec: spec/core/defaults.md
package defaults

import (
	"context"
	"errors"
	"os"

	"github.com/BurntSushi/toml"

	"settingsd/internal/datastore"
	"settingsd/internal/errs"
	"settingsd/internal/flatten"
	"settingsd/internal/key"
)

// Load parses path as a defaults TOML document and populates store's Live
// scope directly: every non-"metadata" top-level table is flattened the
// same way the serialization bridge flattens a record, and each
// "metadata" entry becomes a SetMetadata call.
func Load(ctx context.Context, store datastore.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.IO(path, err)
	}
	return LoadBytes(ctx, store, path, data)
}

// LoadBytes is Load without a filesystem read, for tests and for callers
// that already hold the document in memory.
func LoadBytes(ctx context.Context, store datastore.Store, sourcePath string, data []byte) error {
	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return errs.Corruption(sourcePath, "failed to parse defaults document: "+err.Error())
	}

	metaRaw, hasMetadata := raw["metadata"]
	delete(raw, "metadata")

	pairs, err := flatten.ToPairs("", rest(raw))
	if err != nil {
		return errs.Corruption(sourcePath, "failed to flatten defaults tables: "+err.Error())
	}
	values := make(map[key.Key]string, len(pairs))
	for text, v := range pairs {
		k, err := key.Make(key.Data, text)
		if err != nil {
			return errs.Corruption(sourcePath, "defaults table produced an invalid key: "+text)
		}
		values[k] = v
	}
	if err := store.SetKeys(ctx, values, datastore.Live); err != nil {
		return err
	}

	if !hasMetadata {
		return nil
	}
	entries, ok := metaRaw.([]map[string]interface{})
	if !ok {
		entries, err = coerceMetadataEntries(metaRaw)
		if err != nil {
			return errs.Corruption(sourcePath, "malformed metadata entry: "+err.Error())
		}
	}
	for _, entry := range entries {
		mdText, _ := entry["md"].(string)
		keyText, _ := entry["key"].(string)
		if mdText == "" || keyText == "" {
			return errs.Corruption(sourcePath, "metadata entry missing required key/md field")
		}
		meta, err := key.Make(key.Meta, mdText)
		if err != nil {
			return errs.Corruption(sourcePath, "metadata entry has invalid md key: "+mdText)
		}
		dataKey, err := key.Make(key.Data, keyText)
		if err != nil {
			return errs.Corruption(sourcePath, "metadata entry has invalid data key: "+keyText)
		}
		val, err := flatten.SerializeScalar(entry["val"])
		if err != nil {
			return errs.Corruption(sourcePath, "metadata entry value failed to serialize: "+err.Error())
		}
		if err := store.SetMetadata(ctx, meta, dataKey, val); err != nil {
			return err
		}
	}
	return nil
}

// rest is a map alias so flatten.ToPairs treats the defaults tables exactly
// like a map-rooted model value (see internal/flatten).
type rest map[string]interface{}

// coerceMetadataEntries handles the shape toml.Decode actually produces for
// a TOML array-of-tables assigned into an interface{}: []map[string]interface{}
// in the common case, but some decoders surface []interface{} of
// map[string]interface{}. Both are normalized here.
func coerceMetadataEntries(raw interface{}) ([]map[string]interface{}, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, errors.New("metadata is not a sequence of tables")
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, errors.New("metadata entry is not a table")
		}
		out = append(out, m)
	}
	return out, nil
}
