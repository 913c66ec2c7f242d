// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package materialize renders configuration-file templates against the
// live settings tree and writes them to their declared target paths.
//
// Feature: CORE_MATERIALIZE
// Spec: spec/core/materialize.md
package materialize

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cbroglie/mustache"

	"settingsd/internal/errs"
	"settingsd/internal/model"
)

// AffectedConfigurationFileNames collects, from services, the union of
// every named service's configuration_files list.
func AffectedConfigurationFileNames(services model.Services) []string {
	seen := map[string]bool{}
	var out []string
	for _, svc := range services {
		for _, name := range svc.ConfigurationFiles {
			if seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Rendered is a single template's output, paired with the path it should
// be written to.
type Rendered struct {
	Path string
	Body []byte
}

// Render renders each of configFiles' templates against settings, wrapping
// settings under the render-context key "settings" so templates address
// data as "settings.<...>". templatePartials supplies any mustache
// partials the templates reference; it may be nil.
//
// cbroglie/mustache resolves tags by reflecting over Go struct fields, and
// Go identifiers cannot contain the hyphens that model.Settings' external
// names use (e.g. "cluster-dns-ip"). settings is therefore marshaled
// through its `json` tags into a plain map before it ever reaches mustache,
// so templates see the same kebab-case names the datastore does.
func Render(configFiles model.ConfigurationFiles, settings model.Settings, templatePartials mustache.PartialProvider) ([]Rendered, error) {
	settingsMap, err := toTagAwareMap(settings)
	if err != nil {
		return nil, errs.Serialization("settings", err)
	}
	context := map[string]interface{}{"settings": settingsMap}

	out := make([]Rendered, 0, len(configFiles))
	for name, descriptor := range configFiles {
		if descriptor.TemplatePath == nil {
			continue
		}
		body, err := renderOne(*descriptor.TemplatePath, context, templatePartials)
		if err != nil {
			return nil, errs.TemplateRender(name, err)
		}
		path := ""
		if descriptor.Path != nil {
			path = *descriptor.Path
		}
		out = append(out, Rendered{Path: path, Body: []byte(body)})
	}
	return out, nil
}

// toTagAwareMap round-trips v through encoding/json so its `json`-tagged
// external names (kebab-case, matching the `flat` tags in package model)
// become plain map keys mustache can resolve by reflection, nested records
// included.
func toTagAwareMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func renderOne(templatePath string, context interface{}, partials mustache.PartialProvider) (string, error) {
	tmpl, err := mustache.ParseFilePartials(templatePath, partials)
	if err != nil {
		return "", err
	}
	return tmpl.Render(context)
}

// Write writes each rendered file to disk, creating parent directories as
// needed and replacing any existing content. The order files are written
// in is unspecified.
func Write(rendered []Rendered) error {
	for _, r := range rendered {
		if r.Path == "" {
			continue
		}
		dir := filepath.Dir(r.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.TemplateWrite(dir, errs.PathKindDirectory, err)
		}
		if err := os.WriteFile(r.Path, r.Body, 0o644); err != nil {
			return errs.TemplateWrite(r.Path, errs.PathKindFile, err)
		}
	}
	return nil
}
