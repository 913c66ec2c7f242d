// SPDX-License-Identifier: AGPL-3.0-or-later

package applier

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"settingsd/internal/key"
	"settingsd/pkg/executil"
)

// TestDeliver_WritesChangedKeysToStdin checks that a commit's changed-key
// set reaches the applier's stdin as a JSON array, and Deliver returns
// before the applier process has necessarily finished running.
func TestDeliver_WritesChangedKeysToStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fixture assumes a POSIX shell")
	}

	runner := executil.NewRunner()
	ctx := context.Background()

	dir := t.TempDir()
	marker := filepath.Join(dir, "received")

	cmd := Command{
		Name: "sh",
		Args: []string{"-c", "sleep 0.05; cat > " + marker},
	}
	changed := []key.Key{
		key.MustMake(key.Data, "settings.hostname"),
		key.MustMake(key.Data, "settings.kubernetes.max-pods"),
	}

	if err := Deliver(ctx, runner, cmd, changed); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	// The shell creates marker before cat writes to it, so wait for content,
	// not just for the file to exist.
	deadline := time.Now().Add(2 * time.Second)
	var data []byte
	var err error
	for time.Now().Before(deadline) {
		data, err = os.ReadFile(marker)
		if err == nil && len(data) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("expected applier to have received input: %v", err)
	}

	var got []string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("applier stdin was not a JSON array: %v", err)
	}
	want := []string{"settings.hostname", "settings.kubernetes.max-pods"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDeliver_EmptyChangedSetStillStartsApplier(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fixture assumes a POSIX shell")
	}

	runner := executil.NewRunner()
	ctx := context.Background()

	dir := t.TempDir()
	marker := filepath.Join(dir, "received")

	cmd := Command{Name: "sh", Args: []string{"-c", "cat > " + marker}}

	if err := Deliver(ctx, runner, cmd, nil); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	// The shell creates marker before cat writes to it, so wait for content,
	// not just for the file to exist.
	deadline := time.Now().Add(2 * time.Second)
	var data []byte
	var err error
	for time.Now().Before(deadline) {
		data, err = os.ReadFile(marker)
		if err == nil && len(data) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("expected applier to have received input: %v", err)
	}
	if string(data) != "[]" {
		t.Fatalf("got %q, want %q", data, "[]")
	}
}

func TestDeliver_StartFailureIsReported(t *testing.T) {
	runner := executil.NewRunner()
	ctx := context.Background()

	cmd := Command{Name: "nonexistent-applier-binary-12345"}

	err := Deliver(ctx, runner, cmd, []key.Key{key.MustMake(key.Data, "settings.hostname")})
	if err == nil {
		t.Fatal("expected error when the applier binary cannot be started")
	}
}

// TestDeliverAndWait_ReturnsApplierResult covers the synchronous path used
// by `settingsd apply --wait`: the caller blocks until the applier exits
// and gets its exit code and captured output back.
func TestDeliverAndWait_ReturnsApplierResult(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fixture assumes a POSIX shell")
	}

	runner := executil.NewRunner()
	ctx := context.Background()

	cmd := Command{Name: "sh", Args: []string{"-c", "cat; exit 3"}}
	changed := []key.Key{key.MustMake(key.Data, "settings.hostname")}

	result, err := DeliverAndWait(ctx, runner, cmd, changed)
	if err == nil {
		t.Fatal("expected an error for a non-zero applier exit code")
	}
	if result == nil {
		t.Fatal("expected a result even when the applier exits non-zero")
	}
	if result.ExitCode != 3 {
		t.Fatalf("ExitCode = %d, want 3", result.ExitCode)
	}

	var got []string
	if err := json.Unmarshal(result.Stdout, &got); err != nil {
		t.Fatalf("applier stdout was not the echoed JSON array: %v (stdout=%q)", err, result.Stdout)
	}
	if len(got) != 1 || got[0] != "settings.hostname" {
		t.Fatalf("got %v, want [settings.hostname]", got)
	}
}

func TestDeliverAndWait_StartFailureIsReported(t *testing.T) {
	runner := executil.NewRunner()
	ctx := context.Background()

	_, err := DeliverAndWait(ctx, runner, Command{Name: "nonexistent-applier-binary-12345"}, nil)
	if err == nil {
		t.Fatal("expected error when the applier binary cannot be run")
	}
}

// TestDeliverStream_ForwardsApplierOutput covers the `settingsd apply
// --follow` path: the applier's output reaches the caller-supplied writer
// while DeliverStream blocks waiting for it to exit.
func TestDeliverStream_ForwardsApplierOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fixture assumes a POSIX shell")
	}

	runner := executil.NewRunner()
	ctx := context.Background()

	cmd := Command{Name: "sh", Args: []string{"-c", "cat; echo applied >&2"}}
	changed := []key.Key{key.MustMake(key.Data, "settings.hostname")}

	var buf bytes.Buffer
	if err := DeliverStream(ctx, runner, cmd, changed, &buf); err != nil {
		t.Fatalf("DeliverStream: %v", err)
	}
	if !strings.Contains(buf.String(), `"settings.hostname"`) {
		t.Fatalf("expected forwarded output to contain the echoed changed keys, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "applied") {
		t.Fatalf("expected forwarded output to contain applier stderr, got %q", buf.String())
	}
}
