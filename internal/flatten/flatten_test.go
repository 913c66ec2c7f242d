// SPDX-License-Identifier: AGPL-3.0-or-later

package flatten

import (
	"testing"

	"settingsd/internal/model"
)

func strptr(s string) *string { return &s }
func i64ptr(i int64) *int64   { return &i }

func TestRoundTrip_Settings(t *testing.T) {
	in := model.Settings{
		Hostname: strptr("node-1"),
		Timezone: strptr("UTC"),
		Kubernetes: &model.KubernetesSettings{
			ClusterDNSIP:  strptr("10.0.0.10"),
			ClusterDomain: strptr("cluster.local"),
			MaxPods:       i64ptr(110),
		},
		NTP: &model.NTPSettings{
			TimeServers: []string{"0.pool.ntp.org", "1.pool.ntp.org"},
		},
	}

	pairs, err := ToPairs("settings", in)
	if err != nil {
		t.Fatalf("ToPairs: %v", err)
	}

	if pairs["settings.hostname"] != `"node-1"` {
		t.Errorf("settings.hostname = %q", pairs["settings.hostname"])
	}
	if pairs["settings.kubernetes.max-pods"] != "110" {
		t.Errorf("settings.kubernetes.max-pods = %q", pairs["settings.kubernetes.max-pods"])
	}
	if _, ok := pairs["settings.network"]; ok {
		t.Errorf("expected no entry for absent network settings")
	}

	var out model.Settings
	if err := FromMap(pairs, "settings.", &out); err != nil {
		t.Fatalf("FromMap: %v", err)
	}

	if out.Hostname == nil || *out.Hostname != "node-1" {
		t.Errorf("Hostname = %v, want node-1", out.Hostname)
	}
	if out.Kubernetes == nil || out.Kubernetes.MaxPods == nil || *out.Kubernetes.MaxPods != 110 {
		t.Errorf("Kubernetes.MaxPods round-trip failed: %+v", out.Kubernetes)
	}
	if out.Network != nil {
		t.Errorf("expected Network to remain nil, got %+v", out.Network)
	}
	if len(out.NTP.TimeServers) != 2 {
		t.Errorf("NTP.TimeServers = %v", out.NTP.TimeServers)
	}
}

func TestFlatten_MappingRoot(t *testing.T) {
	in := model.Services{
		"foo": {
			ConfigurationFiles: []string{"file1"},
			RestartCommands:    []string{"echo hi"},
		},
	}

	pairs, err := ToPairs("services", in)
	if err != nil {
		t.Fatalf("ToPairs: %v", err)
	}
	if pairs["services.foo.configuration-files"] != `["file1"]` {
		t.Errorf("services.foo.configuration-files = %q", pairs["services.foo.configuration-files"])
	}

	var out model.Services
	if err := FromMap(pairs, "services.", &out); err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	svc, ok := out["foo"]
	if !ok {
		t.Fatalf("expected service 'foo' in decoded map")
	}
	if len(svc.ConfigurationFiles) != 1 || svc.ConfigurationFiles[0] != "file1" {
		t.Errorf("ConfigurationFiles = %v", svc.ConfigurationFiles)
	}
	if len(svc.RestartCommands) != 1 || svc.RestartCommands[0] != "echo hi" {
		t.Errorf("RestartCommands = %v", svc.RestartCommands)
	}
}

func TestFromMap_UnknownFieldUnderRecordIsError(t *testing.T) {
	pairs := map[string]string{"settings.not-a-real-field": `"x"`}
	var out model.Settings
	if err := FromMap(pairs, "settings.", &out); err == nil {
		t.Fatal("expected error for unknown field under typed record")
	}
}

func TestFromMap_UnknownKeyUnderMapIsNewEntry(t *testing.T) {
	pairs := map[string]string{"services.brand-new-service.configuration-files": `["f"]`}
	var out model.Services
	if err := FromMap(pairs, "services.", &out); err != nil {
		t.Fatalf("FromMap: %v", err)
	}
	if _, ok := out["brand-new-service"]; !ok {
		t.Fatalf("expected new map entry for unrecognized service name")
	}
}

func TestSerializeDeserializeScalar(t *testing.T) {
	s, err := SerializeScalar("json string")
	if err != nil {
		t.Fatalf("SerializeScalar: %v", err)
	}
	if s != `"json string"` {
		t.Errorf("SerializeScalar = %q", s)
	}

	var out string
	if err := DeserializeScalar(s, &out); err != nil {
		t.Fatalf("DeserializeScalar: %v", err)
	}
	if out != "json string" {
		t.Errorf("DeserializeScalar = %q", out)
	}
}
