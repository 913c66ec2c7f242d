// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package flatten implements the serialization bridge between the typed
// settings tree (package model) and the flat (dotted key -> scalar JSON
// string) pairs the datastore stores, driven by `flat:"..."` struct tags.
//
// Feature: CORE_SERIALIZATION
// Spec: spec/core/serialization.md
package flatten

import (
	"encoding/json"
	"reflect"
	"strings"

	"settingsd/internal/errs"
	"settingsd/internal/key"
)

const tagName = "flat"

// ToPairs flattens v (a struct or map rooted per the `flat` tags of package
// model) into a set of dotted-key -> scalar-JSON-string pairs, each key
// prefixed by prefix. Record fields become "parent.field-name" entries, map
// entries become "parent.map-key" subtrees, ordered sequences are stored
// whole as a single JSON-array leaf, and an absent optional field (nil
// pointer or nil slice/map) produces no entry at all.
func ToPairs(prefix string, v interface{}) (map[string]string, error) {
	out := map[string]string{}
	if err := flattenValue(prefix, reflect.ValueOf(v), out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenValue(prefix string, rv reflect.Value, out map[string]string) error {
	if !rv.IsValid() {
		return nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return flattenValue(prefix, rv.Elem(), out)

	case reflect.Struct:
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue // unexported
			}
			tag := field.Tag.Get(tagName)
			if tag == "" {
				continue
			}
			if err := flattenValue(key.Join(prefix, tag), rv.Field(i), out); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		iter := rv.MapRange()
		for iter.Next() {
			childKey := key.Join(prefix, iter.Key().String())
			if err := flattenValue(childKey, iter.Value(), out); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		return encodeLeaf(prefix, rv, out)

	default:
		// Scalar leaf: string, bool, or one of the integer/float kinds.
		return encodeLeaf(prefix, rv, out)
	}
}

func encodeLeaf(prefix string, rv reflect.Value, out map[string]string) error {
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		return errs.Serialization(prefix, err)
	}
	out[prefix] = string(data)
	return nil
}

// FromMap reconstructs target (a pointer to a struct or a pointer to a map,
// per package model's shapes) from pairs, a flat set of dotted keys whose
// common prefix is stripped by the caller-supplied prefix before decoding
// begins. Each leaf value is parsed as JSON. An unknown key under a typed
// record is an error (strict schema); an unknown key under a mapping
// becomes a new map entry.
func FromMap(pairs map[string]string, prefix string, target interface{}) error {
	rel := map[string]string{}
	for k, v := range pairs {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rel[strings.TrimPrefix(k, prefix)] = v
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errs.Deserialization(prefix, errString("FromMap target must be a non-nil pointer"))
	}
	return decode(rv.Elem(), rel)
}

type errString string

func (e errString) Error() string { return string(e) }

// pathSegment splits "a.b.c" into its first segment "a" and remainder "b.c"
// (remainder is "" when there is no further dot).
func pathSegment(path string) (seg, rest string) {
	if idx := strings.IndexByte(path, '.'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}

// decode fills rv (addressable, the element a pointer was unwrapped from or
// a newly allocated struct/map field) from rel, a map of key-remainder ->
// scalar-JSON-string relative to rv's own position in the tree.
func decode(rv reflect.Value, rel map[string]string) error {
	switch rv.Kind() {
	case reflect.Ptr:
		if len(rel) == 0 {
			return nil // absent optional field stays nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return decode(rv.Elem(), rel)

	case reflect.Struct:
		buckets := bucketize(rel)
		t := rv.Type()
		seen := map[string]bool{}
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if field.PkgPath != "" {
				continue
			}
			tag := field.Tag.Get(tagName)
			if tag == "" {
				continue
			}
			bucket, ok := buckets[tag]
			if !ok {
				continue // optional field, absent
			}
			seen[tag] = true
			if err := decode(rv.Field(i), bucket); err != nil {
				return err
			}
		}
		for tag := range buckets {
			if !seen[tag] {
				return errs.Deserialization(tag, errString("unknown field under typed record"))
			}
		}
		return nil

	case reflect.Map:
		if rv.IsNil() {
			rv.Set(reflect.MakeMap(rv.Type()))
		}
		buckets := bucketize(rel)
		for mapKey, bucket := range buckets {
			elem := reflect.New(rv.Type().Elem()).Elem()
			if err := decode(elem, bucket); err != nil {
				return err
			}
			rv.SetMapIndex(reflect.ValueOf(mapKey), elem)
		}
		return nil

	case reflect.Slice:
		raw, ok := rel[""]
		if !ok {
			return nil // absent
		}
		ptr := reflect.New(rv.Type())
		if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
			return errs.Deserialization(raw, err)
		}
		rv.Set(ptr.Elem())
		return nil

	default:
		raw, ok := rel[""]
		if !ok {
			return nil
		}
		ptr := reflect.New(rv.Type())
		if err := json.Unmarshal([]byte(raw), ptr.Interface()); err != nil {
			return errs.Deserialization(raw, err)
		}
		rv.Set(ptr.Elem())
		return nil
	}
}

// bucketize groups rel (remainder-path -> value) by first path segment,
// keeping each group's own remainder (possibly "") relative to that segment.
func bucketize(rel map[string]string) map[string]map[string]string {
	buckets := map[string]map[string]string{}
	for path, v := range rel {
		seg, rest := pathSegment(path)
		b, ok := buckets[seg]
		if !ok {
			b = map[string]string{}
			buckets[seg] = b
		}
		b[rest] = v
	}
	return buckets
}

// SerializeScalar encodes a single leaf value (used for metadata values) as
// its scalar JSON form.
func SerializeScalar(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", errs.ScalarSerialization("", err)
	}
	return string(data), nil
}

// DeserializeScalar decodes a scalar JSON string (used for metadata values)
// into target, a pointer to the destination type.
func DeserializeScalar(s string, target interface{}) error {
	if err := json.Unmarshal([]byte(s), target); err != nil {
		return errs.ScalarSerialization(s, err)
	}
	return nil
}
