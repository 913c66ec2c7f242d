// SPDX-License-Identifier: AGPL-3.0-or-later

package defaults

import (
	"context"
	"testing"

	"settingsd/internal/datastore"
	"settingsd/internal/datastore/memory"
	"settingsd/internal/key"
)

const doc = `
[[metadata]]
key = "settings.hostname"
md = "setting-generator"
val = "dhcp"

[settings]
hostname = "node-1"
timezone = "UTC"

[settings.kubernetes]
max-pods = 110
`

// TestE7_LoadTargetsLiveDirectly mirrors spec scenario E7.
func TestE7_LoadTargetsLiveDirectly(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if err := LoadBytes(ctx, store, "defaults.toml", []byte(doc)); err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}

	v, ok, err := store.GetKey(ctx, key.MustMake(key.Data, "settings.hostname"), datastore.Live)
	if err != nil || !ok || v != `"node-1"` {
		t.Fatalf("GetKey(settings.hostname, Live) = %q, %v, %v", v, ok, err)
	}

	v, ok, err = store.GetKey(ctx, key.MustMake(key.Data, "settings.kubernetes.max-pods"), datastore.Live)
	if err != nil || !ok || v != "110" {
		t.Fatalf("GetKey(settings.kubernetes.max-pods, Live) = %q, %v, %v", v, ok, err)
	}

	_, ok, err = store.GetKey(ctx, key.MustMake(key.Data, "settings.hostname"), datastore.Pending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected Pending to remain untouched by defaults load")
	}

	meta, ok, err := store.GetMetadata(ctx, key.MustMake(key.Meta, "setting-generator"), key.MustMake(key.Data, "settings.hostname"))
	if err != nil || !ok || meta != `"dhcp"` {
		t.Fatalf("GetMetadata = %q, %v, %v", meta, ok, err)
	}
}

func TestLoadBytes_MalformedTOMLIsCorruption(t *testing.T) {
	store := memory.New()
	err := LoadBytes(context.Background(), store, "bad.toml", []byte("not = [valid"))
	if err == nil {
		t.Fatal("expected error for malformed TOML")
	}
}

func TestLoadBytes_MissingMetadataFieldIsCorruption(t *testing.T) {
	store := memory.New()
	bad := `
[[metadata]]
md = "setting-generator"
`
	err := LoadBytes(context.Background(), store, "bad.toml", []byte(bad))
	if err == nil {
		t.Fatal("expected error for metadata entry missing key field")
	}
}
