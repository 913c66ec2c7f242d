// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package errs defines the error taxonomy shared by the datastore,
// controller and materializer: one structured error type with a closed
// set of Kinds, matching how pkg/migrations classifies migration failures.
package errs

import "fmt"

// Kind classifies a settingsd error so callers can branch on failure type
// without string-matching messages.
type Kind string

const (
	KindInvalidKey          Kind = "invalid_key"
	KindPathTraversal       Kind = "path_traversal"
	KindIO                  Kind = "io"
	KindCorruption          Kind = "corruption"
	KindSerialization       Kind = "serialization"
	KindDeserialization     Kind = "deserialization"
	KindScalarSerialization Kind = "scalar_serialization"
	KindMissingData         Kind = "missing_data"
	KindListKeys            Kind = "list_keys"
	KindInvalidJSON         Kind = "invalid_json"
	KindNotJSONObject       Kind = "not_json_object"
	KindNoSettings          Kind = "no_settings"
	KindInvalidSettings     Kind = "invalid_settings"
	KindTemplateRender      Kind = "template_render"
	KindTemplateWrite       Kind = "template_write"
)

// PathKind distinguishes the filesystem entity a TemplateWrite error
// occurred against.
type PathKind string

const (
	PathKindDirectory PathKind = "directory"
	PathKindFile      PathKind = "file"
)

// Error is the structured error type returned by every public settingsd
// operation. It carries enough context (key, path, a human message, and the
// wrapped cause) to log usefully without callers needing to reconstruct it.
type Error struct {
	Kind    Kind
	Message string
	Key     string
	Path    string
	// PathKind is set only for KindTemplateWrite errors.
	PathKind PathKind
	Cause    error
}

func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.Path != "":
		return fmt.Sprintf("[%s] %s (key=%s path=%s)", e.Kind, e.Message, e.Key, e.Path)
	case e.Key != "":
		return fmt.Sprintf("[%s] %s (key=%s)", e.Kind, e.Message, e.Key)
	case e.Path != "":
		return fmt.Sprintf("[%s] %s (path=%s)", e.Kind, e.Message, e.Path)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// InvalidKey wraps a key validation failure.
func InvalidKey(keyText string, cause error) *Error {
	return &Error{Kind: KindInvalidKey, Message: "key failed validation", Key: keyText, Cause: cause}
}

// PathTraversal reports that a computed path escaped its scope root.
func PathTraversal(path string) *Error {
	return &Error{Kind: KindPathTraversal, Message: "computed path escapes scope root", Path: path}
}

// IO wraps an underlying filesystem error.
func IO(path string, cause error) *Error {
	return &Error{Kind: KindIO, Message: "filesystem operation failed", Path: path, Cause: cause}
}

// Corruption reports a violated structural invariant (missing live scope, a
// listed key that can't be read, a non-UTF-8 path in the store).
func Corruption(path, msg string) *Error {
	return &Error{Kind: KindCorruption, Message: msg, Path: path}
}

// Serialization wraps a flatten failure.
func Serialization(given string, cause error) *Error {
	return &Error{Kind: KindSerialization, Message: "failed to flatten value", Key: given, Cause: cause}
}

// Deserialization wraps an unflatten failure.
func Deserialization(given string, cause error) *Error {
	return &Error{Kind: KindDeserialization, Message: "failed to reconstruct value", Key: given, Cause: cause}
}

// ScalarSerialization wraps a leaf scalar JSON encode/decode failure.
func ScalarSerialization(given string, cause error) *Error {
	return &Error{Kind: KindScalarSerialization, Message: "failed to encode/decode scalar", Key: given, Cause: cause}
}

// MissingData reports that an expected non-empty subtree was empty.
func MissingData(prefix string) *Error {
	return &Error{Kind: KindMissingData, Message: "expected subtree was empty", Key: prefix}
}

// ListKeys reports that a requested named item produced no populated keys.
func ListKeys(requested string) *Error {
	return &Error{Kind: KindListKeys, Message: "requested name produced no populated keys", Key: requested}
}

// InvalidJSON reports that raw settings input could not be parsed as JSON at all.
func InvalidJSON(cause error) *Error {
	return &Error{Kind: KindInvalidJSON, Message: "input is not valid JSON", Cause: cause}
}

// NotJSONObject reports that JSON input decoded but was not an object.
func NotJSONObject() *Error {
	return &Error{Kind: KindNotJSONObject, Message: "input JSON is not an object"}
}

// NoSettings reports that a JSON object had no top-level "settings" field.
func NoSettings() *Error {
	return &Error{Kind: KindNoSettings, Message: `input object has no "settings" field`}
}

// InvalidSettings reports that neither decode strategy in settings_input succeeded.
func InvalidSettings(cause error) *Error {
	return &Error{Kind: KindInvalidSettings, Message: "input does not decode as Settings", Cause: cause}
}

// TemplateRender wraps a template rendering failure.
func TemplateRender(template string, cause error) *Error {
	return &Error{Kind: KindTemplateRender, Message: "template render failed", Path: template, Cause: cause}
}

// TemplateWrite wraps a failure writing a rendered configuration file or
// its parent directory.
func TemplateWrite(path string, pk PathKind, cause error) *Error {
	return &Error{Kind: KindTemplateWrite, Message: "failed writing rendered output", Path: path, PathKind: pk, Cause: cause}
}
