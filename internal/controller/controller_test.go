// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"testing"

	"settingsd/internal/datastore"
	"settingsd/internal/datastore/memory"
	"settingsd/internal/errs"
	"settingsd/internal/key"
	"settingsd/internal/model"
)

func strptr(s string) *string { return &s }

// TestE2_SetThenCommitThenGetSettings mirrors spec scenario E2.
func TestE2_SetThenCommitThenGetSettings(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	in := model.Settings{Hostname: strptr("node-1")}
	if err := SetSettings(ctx, store, "", in); err != nil {
		t.Fatalf("SetSettings: %v", err)
	}

	if _, err := GetSettings(ctx, store, datastore.Live); err == nil {
		t.Fatal("expected an error reading unpopulated Live before commit")
	}

	if _, err := Commit(ctx, store); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	out, err := GetSettings(ctx, store, datastore.Live)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if out.Hostname == nil || *out.Hostname != "node-1" {
		t.Fatalf("Hostname = %v, want node-1", out.Hostname)
	}
}

// TestE3_GetSettingsPrefixEmptyIsNotError mirrors spec scenario E3.
func TestE3_GetSettingsPrefixEmptyIsNotError(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedLive(t, store, map[string]string{"settings.hostname": `"h"`})

	out, err := GetSettingsPrefix(ctx, store, "kubernetes", datastore.Live)
	if err != nil {
		t.Fatalf("GetSettingsPrefix: %v", err)
	}
	if out.Kubernetes != nil {
		t.Fatalf("expected nil Kubernetes subtree, got %+v", out.Kubernetes)
	}
}

// TestE4_GetServicesNames_UnknownNameErrors mirrors spec scenario E4.
func TestE4_GetServicesNames_UnknownNameErrors(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedLive(t, store, map[string]string{
		"services.foo.restart-commands": `["echo"]`,
	})

	if _, err := GetServicesNames(ctx, store, []string{"foo"}, datastore.Live); err != nil {
		t.Fatalf("GetServicesNames(foo): %v", err)
	}

	_, err := GetServicesNames(ctx, store, []string{"bar"}, datastore.Live)
	if err == nil {
		t.Fatal("expected ListKeys error for unknown service name")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.KindListKeys {
		t.Fatalf("expected ListKeys error, got %v", err)
	}
}

func TestGetSettingsKeys_SkipsMissingRatherThanErrors(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	seedLive(t, store, map[string]string{"settings.hostname": `"h"`})

	out, err := GetSettingsKeys(ctx, store, []string{"hostname", "timezone"}, datastore.Live)
	if err != nil {
		t.Fatalf("GetSettingsKeys: %v", err)
	}
	if out.Hostname == nil || *out.Hostname != "h" {
		t.Fatalf("Hostname = %v", out.Hostname)
	}
	if out.Timezone != nil {
		t.Fatalf("expected nil Timezone for unset key, got %v", out.Timezone)
	}
}

func TestGetMetadata_BestEffortSkipsFailures(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	meta := key.MustMake(key.Meta, "setting-generator")
	d := key.MustMake(key.Data, "settings.hostname")
	if err := store.SetMetadata(ctx, meta, d, `"dhcp"`); err != nil {
		t.Fatal(err)
	}

	got, err := GetMetadata(ctx, store, "setting-generator", []string{"settings.hostname", "settings.timezone"})
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got["settings.hostname"] != "dhcp" {
		t.Fatalf("got = %v", got)
	}
	if _, ok := got["settings.timezone"]; ok {
		t.Fatalf("expected no entry for key with no metadata, got %v", got)
	}
}

// TestSettingsInput_BareAndWrappedAgree mirrors spec §8 testable property 8.
func TestSettingsInput_BareAndWrappedAgree(t *testing.T) {
	bare := []byte(`{"hostname":"node-7"}`)
	wrapped := []byte(`{"settings":{"hostname":"node-7"}}`)

	a, err := SettingsInput(bare)
	if err != nil {
		t.Fatalf("SettingsInput(bare): %v", err)
	}
	b, err := SettingsInput(wrapped)
	if err != nil {
		t.Fatalf("SettingsInput(wrapped): %v", err)
	}
	if a.Hostname == nil || b.Hostname == nil || *a.Hostname != *b.Hostname {
		t.Fatalf("bare and wrapped forms disagree: %v vs %v", a.Hostname, b.Hostname)
	}
}

func TestSettingsInput_InvalidJSON(t *testing.T) {
	_, err := SettingsInput([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.KindInvalidJSON {
		t.Fatalf("expected InvalidJSON, got %v", err)
	}
}

func TestSettingsInput_NotJSONObject(t *testing.T) {
	_, err := SettingsInput([]byte(`[1,2,3]`))
	if err == nil {
		t.Fatal("expected error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.KindNotJSONObject {
		t.Fatalf("expected NotJSONObject, got %v", err)
	}
}

func TestSettingsInput_NoSettingsField(t *testing.T) {
	_, err := SettingsInput([]byte(`{"foo":"bar"}`))
	if err == nil {
		t.Fatal("expected error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.KindNoSettings {
		t.Fatalf("expected NoSettings, got %v", err)
	}
}

func TestSettingsInput_InvalidSettingsShape(t *testing.T) {
	_, err := SettingsInput([]byte(`{"settings":{"hostname":123}}`))
	if err == nil {
		t.Fatal("expected error")
	}
	var asErr *errs.Error
	if !errors.As(err, &asErr) || asErr.Kind != errs.KindInvalidSettings {
		t.Fatalf("expected InvalidSettings, got %v", err)
	}
}

func seedLive(t *testing.T, store datastore.Store, pairs map[string]string) {
	t.Helper()
	ctx := context.Background()
	values := map[key.Key]string{}
	for text, v := range pairs {
		values[key.MustMake(key.Data, text)] = v
	}
	if err := store.SetKeys(ctx, values, datastore.Live); err != nil {
		t.Fatal(err)
	}
}
