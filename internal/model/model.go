// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package model defines the strongly typed settings tree that sits on the
// other side of the serialization bridge (package flatten) from the flat
// (Key, scalar-string) pairs the datastore stores.
//
// Feature: CORE_MODEL
// Spec: spec/core/model.md
package model

// Settings is the root of the "settings.*" typed tree. Every field is
// optional: absence is legal and meaningful ("not set"), so leaf scalars
// and nested records are represented as pointers. The `flat` tag drives the
// datastore serialization bridge (package flatten); the `json` tag drives
// decoding of raw user input (controller.SettingsInput) and uses the same
// external dashed names.
type Settings struct {
	Hostname   *string             `flat:"hostname" json:"hostname,omitempty"`
	Timezone   *string             `flat:"timezone" json:"timezone,omitempty"`
	Kubernetes *KubernetesSettings `flat:"kubernetes" json:"kubernetes,omitempty"`
	Network    *NetworkSettings    `flat:"network" json:"network,omitempty"`
	NTP        *NTPSettings        `flat:"ntp" json:"ntp,omitempty"`
	Updates    *UpdatesSettings    `flat:"updates" json:"updates,omitempty"`
}

// KubernetesSettings configures the node's kubelet.
type KubernetesSettings struct {
	ClusterDNSIP   *string `flat:"cluster-dns-ip" json:"cluster-dns-ip,omitempty"`
	ClusterDomain  *string `flat:"cluster-domain" json:"cluster-domain,omitempty"`
	ClusterName    *string `flat:"cluster-name" json:"cluster-name,omitempty"`
	MaxPods        *int64  `flat:"max-pods" json:"max-pods,omitempty"`
	StandaloneMode *bool   `flat:"standalone-mode" json:"standalone-mode,omitempty"`
}

// NetworkSettings configures node-level networking.
type NetworkSettings struct {
	HostnameOverride *string  `flat:"hostname-override" json:"hostname-override,omitempty"`
	HTTPSProxy       *string  `flat:"https-proxy" json:"https-proxy,omitempty"`
	NoProxy          []string `flat:"no-proxy" json:"no-proxy,omitempty"`
}

// NTPSettings configures the time synchronization client.
type NTPSettings struct {
	TimeServers []string `flat:"time-servers" json:"time-servers,omitempty"`
}

// UpdatesSettings configures the update subsystem's view of the repository
// it should pull from; the subsystem itself is out of scope here.
type UpdatesSettings struct {
	TargetBaseURL *string `flat:"target-base-url" json:"target-base-url,omitempty"`
	Seed          *int64  `flat:"seed" json:"seed,omitempty"`
}

// Service describes a single named entry of the "services.*" tree: which
// configuration files it owns and what to run on the node when any of them
// changes.
type Service struct {
	ConfigurationFiles []string `flat:"configuration-files" json:"configuration-files,omitempty"`
	RestartCommands    []string `flat:"restart-commands" json:"restart-commands,omitempty"`
}

// ConfigurationFile describes a single named entry of the
// "configuration-files.*" tree: a template and the path it renders to.
type ConfigurationFile struct {
	Path         *string `flat:"path" json:"path,omitempty"`
	TemplatePath *string `flat:"template-path" json:"template-path,omitempty"`
}

// Services is the map-shaped root of the "services.*" tree, keyed by
// service name.
type Services map[string]Service

// ConfigurationFiles is the map-shaped root of the "configuration-files.*"
// tree, keyed by descriptor name.
type ConfigurationFiles map[string]ConfigurationFile
