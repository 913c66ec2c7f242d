// SPDX-License-Identifier: AGPL-3.0-or-later

package errs

import (
	"errors"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := IO("/base/live/a/b", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}

	var asErr *Error
	if !errors.As(err, &asErr) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if asErr.Kind != KindIO {
		t.Errorf("Kind = %q, want %q", asErr.Kind, KindIO)
	}
}

func TestErrorMessageIncludesContext(t *testing.T) {
	err := ListKeys("bar")
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected non-empty message")
	}
	if got := err.Key; got != "bar" {
		t.Errorf("Key = %q, want %q", got, "bar")
	}
}
