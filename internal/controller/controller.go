// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package controller bridges the flat datastore to the typed settings tree:
// every exported function here takes a datastore.Store and returns or
// accepts a package model value, handling the flatten/unflatten round trip
// and the error-kind mapping the rest of settingsd expects.
//
// Feature: CORE_CONTROLLER
// Spec: spec/core/controller.md
package controller

import (
	"bytes"
	"context"
	"encoding/json"

	"settingsd/internal/datastore"
	"settingsd/internal/errs"
	"settingsd/internal/flatten"
	"settingsd/internal/key"
	"settingsd/internal/model"
)

const settingsPrefix = "settings."

// GetSettings returns the entire "settings.*" tree from scope. An empty
// subtree is a MissingData error: callers ask for settings because they
// expect some to exist.
func GetSettings(ctx context.Context, store datastore.Store, scope datastore.Scope) (*model.Settings, error) {
	pairs, err := getPrefixStrings(ctx, store, settingsPrefix, scope)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errs.MissingData(settingsPrefix)
	}
	var out model.Settings
	if err := flatten.FromMap(pairs, settingsPrefix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettingsPrefix returns the "settings.<prefix>" subtree from scope. An
// empty subtree is not an error here: the caller is narrowing by prefix and
// may legitimately get nothing back (a zero-value Settings).
func GetSettingsPrefix(ctx context.Context, store datastore.Store, prefix string, scope datastore.Scope) (*model.Settings, error) {
	full := key.Join("settings", prefix)
	pairs, err := getPrefixStrings(ctx, store, full, scope)
	if err != nil {
		return nil, err
	}
	var out model.Settings
	if err := flatten.FromMap(pairs, settingsPrefix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPendingSettings returns the "settings.*" tree from Pending. Unlike
// GetSettings, an empty Pending subtree is not an error: nothing may be
// staged yet.
func GetPendingSettings(ctx context.Context, store datastore.Store) (*model.Settings, error) {
	pairs, err := getPrefixStrings(ctx, store, settingsPrefix, datastore.Pending)
	if err != nil {
		return nil, err
	}
	var out model.Settings
	if err := flatten.FromMap(pairs, settingsPrefix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettingsKeys returns a Settings value built only from the given
// dotted-suffix keys (each relative to "settings."), skipping keys with no
// value in scope rather than erroring.
func GetSettingsKeys(ctx context.Context, store datastore.Store, keys []string, scope datastore.Scope) (*model.Settings, error) {
	pairs := map[string]string{}
	for _, k := range keys {
		full, err := key.Make(key.Data, key.Join("settings", k))
		if err != nil {
			return nil, errs.InvalidKey(k, err)
		}
		v, ok, err := store.GetKey(ctx, full, scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		pairs[full.AsText()] = v
	}
	var out model.Settings
	if err := flatten.FromMap(pairs, settingsPrefix, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetServices returns the entire "services.*" tree from Live. An empty
// result is a MissingData error.
func GetServices(ctx context.Context, store datastore.Store) (model.Services, error) {
	pairs, err := getPrefixStrings(ctx, store, "services.", datastore.Live)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errs.MissingData("services.")
	}
	out := model.Services{}
	if err := flatten.FromMap(pairs, "services.", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConfigurationFiles returns the entire "configuration-files.*" tree from
// Live. An empty result is a MissingData error.
func GetConfigurationFiles(ctx context.Context, store datastore.Store) (model.ConfigurationFiles, error) {
	pairs, err := getPrefixStrings(ctx, store, "configuration-files.", datastore.Live)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, errs.MissingData("configuration-files.")
	}
	out := model.ConfigurationFiles{}
	if err := flatten.FromMap(pairs, "configuration-files.", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetServicesNames returns only the named entries of "services.*" from
// scope. Each requested name that produces zero populated keys is a
// ListKeys error: a named lookup that silently returns nothing is a bug
// worth surfacing, unlike GetSettingsKeys' best-effort skip.
func GetServicesNames(ctx context.Context, store datastore.Store, names []string, scope datastore.Scope) (model.Services, error) {
	pairs, err := namedSubtrees(ctx, store, "services", names, scope)
	if err != nil {
		return nil, err
	}
	out := model.Services{}
	if err := flatten.FromMap(pairs, "services.", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetConfigurationFilesNames returns only the named entries of
// "configuration-files.*" from scope, with the same all-or-error semantics
// as GetServicesNames.
func GetConfigurationFilesNames(ctx context.Context, store datastore.Store, names []string, scope datastore.Scope) (model.ConfigurationFiles, error) {
	pairs, err := namedSubtrees(ctx, store, "configuration-files", names, scope)
	if err != nil {
		return nil, err
	}
	out := model.ConfigurationFiles{}
	if err := flatten.FromMap(pairs, "configuration-files.", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMetadata returns, for each of dataKeys, the value stored under the
// metadata key named by metaKeyText. It is best-effort: a data key that
// fails to validate or has no stored metadata is silently skipped rather
// than aborting the whole call.
func GetMetadata(ctx context.Context, store datastore.Store, metaKeyText string, dataKeys []string) (map[string]interface{}, error) {
	meta, err := key.Make(key.Meta, metaKeyText)
	if err != nil {
		return nil, errs.InvalidKey(metaKeyText, err)
	}

	out := map[string]interface{}{}
	for _, text := range dataKeys {
		d, err := key.Make(key.Data, text)
		if err != nil {
			continue
		}
		raw, ok, err := store.GetMetadata(ctx, meta, d)
		if err != nil || !ok {
			continue
		}
		var v interface{}
		if err := flatten.DeserializeScalar(raw, &v); err != nil {
			continue
		}
		out[text] = v
	}
	return out, nil
}

// SetSettings flattens settings under "settings.<prefix>" and stores every
// resulting pair into Pending in a single call.
func SetSettings(ctx context.Context, store datastore.Store, prefix string, settings model.Settings) error {
	root := "settings"
	if prefix != "" {
		root = key.Join(root, prefix)
	}
	pairs, err := flatten.ToPairs(root, settings)
	if err != nil {
		return err
	}
	values := make(map[key.Key]string, len(pairs))
	for text, v := range pairs {
		k, err := key.Make(key.Data, text)
		if err != nil {
			return errs.InvalidKey(text, err)
		}
		values[k] = v
	}
	return store.SetKeys(ctx, values, datastore.Pending)
}

// Commit promotes Pending's "settings.*" keys into Live and returns the
// data keys that were promoted.
func Commit(ctx context.Context, store datastore.Store) ([]key.Key, error) {
	return store.Commit(ctx)
}

// SettingsInput decodes raw user-supplied JSON into a Settings value,
// trying two shapes in order: first as a bare Settings object, then—if that
// fails—as a generic JSON object with a top-level "settings" field wrapping
// the Settings object. Each decode is strict: an unrecognized field is a
// failure, not silently ignored.
func SettingsInput(raw []byte) (*model.Settings, error) {
	var direct model.Settings
	if err := strictDecode(raw, &direct); err == nil {
		return &direct, nil
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		var probe interface{}
		if err2 := json.Unmarshal(raw, &probe); err2 != nil {
			return nil, errs.InvalidJSON(err2)
		}
		return nil, errs.NotJSONObject()
	}

	settingsRaw, ok := generic["settings"]
	if !ok {
		return nil, errs.NoSettings()
	}

	var wrapped model.Settings
	if err := strictDecode(settingsRaw, &wrapped); err != nil {
		return nil, errs.InvalidSettings(err)
	}
	return &wrapped, nil
}

func strictDecode(raw []byte, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func getPrefixStrings(ctx context.Context, store datastore.Store, prefix string, scope datastore.Scope) (map[string]string, error) {
	byKey, err := store.GetPrefix(ctx, prefix, scope)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(byKey))
	for k, v := range byKey {
		out[k.AsText()] = v
	}
	return out, nil
}

// namedSubtrees resolves each of names to "<root>.<name>" and collects its
// populated keys, erroring with ListKeys if any name produces none.
func namedSubtrees(ctx context.Context, store datastore.Store, root string, names []string, scope datastore.Scope) (map[string]string, error) {
	out := map[string]string{}
	for _, name := range names {
		sub := key.Join(root, name)
		byKey, err := store.GetPrefix(ctx, sub+".", scope)
		if err != nil {
			return nil, err
		}
		if len(byKey) == 0 {
			return nil, errs.ListKeys(sub)
		}
		for k, v := range byKey {
			out[k.AsText()] = v
		}
	}
	return out, nil
}
