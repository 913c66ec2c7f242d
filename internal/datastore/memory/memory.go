// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package memory implements datastore.Store entirely in process memory, for
// unit tests and for callers (e.g. the defaults loader under test) that
// don't need the filesystem backend's on-disk layout.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"settingsd/internal/datastore"
	"settingsd/internal/errs"
	"settingsd/internal/key"
)

type metaKeyPair struct {
	meta string
	data string
}

// Store is an in-memory realization of datastore.Store. Safe for concurrent
// use by multiple goroutines, though callers must still serialize commits
// against other mutation per the package-level contract.
type Store struct {
	mu sync.Mutex

	// data[scope][keyText] = value
	data map[datastore.Scope]map[string]string
	// writtenScopes records that a scope has been written to at least once.
	// ListPopulatedKeys and GetPrefix do not consult it: they treat a scope
	// as absent exactly when data has no entry for it.
	writtenScopes map[datastore.Scope]bool
	metadata      map[metaKeyPair]string
}

// New creates an empty in-memory store. Live starts absent, matching the
// filesystem backend's contract that defaults must populate it.
func New() *Store {
	return &Store{
		data:          map[datastore.Scope]map[string]string{},
		writtenScopes: map[datastore.Scope]bool{},
		metadata:      map[metaKeyPair]string{},
	}
}

func (s *Store) KeyPopulated(ctx context.Context, k key.Key, scope datastore.Scope) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[scope]
	if !ok {
		return false, nil
	}
	_, ok = m[k.AsText()]
	return ok, nil
}

func (s *Store) ListPopulatedKeys(ctx context.Context, prefix string, scope datastore.Scope) ([]key.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.data[scope]
	if !ok {
		if scope == datastore.Live {
			return nil, errs.Corruption("", "live scope has never been populated")
		}
		return nil, nil
	}

	var texts []string
	for text := range m {
		if strings.HasPrefix(text, prefix) {
			texts = append(texts, text)
		}
	}
	sort.Strings(texts)

	out := make([]key.Key, 0, len(texts))
	for _, text := range texts {
		k, err := key.Make(key.Data, text)
		if err != nil {
			return nil, errs.Corruption(text, "stored key text is not a valid Data key")
		}
		out = append(out, k)
	}
	return out, nil
}

func (s *Store) GetKey(ctx context.Context, k key.Key, scope datastore.Scope) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.data[scope]
	if !ok {
		return "", false, nil
	}
	v, ok := m[k.AsText()]
	return v, ok, nil
}

func (s *Store) SetKey(ctx context.Context, k key.Key, value string, scope datastore.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setKeyLocked(k, value, scope)
	return nil
}

func (s *Store) setKeyLocked(k key.Key, value string, scope datastore.Scope) {
	m, ok := s.data[scope]
	if !ok {
		m = map[string]string{}
		s.data[scope] = m
	}
	m[k.AsText()] = value
	s.writtenScopes[scope] = true
}

func (s *Store) SetKeys(ctx context.Context, values map[key.Key]string, scope datastore.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.setKeyLocked(k, v, scope)
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, meta key.Key, data key.Key) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.metadata[metaKeyPair{meta: meta.AsText(), data: data.AsText()}]
	return v, ok, nil
}

func (s *Store) SetMetadata(ctx context.Context, meta key.Key, data key.Key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[metaKeyPair{meta: meta.AsText(), data: data.AsText()}] = value
	return nil
}

func (s *Store) GetPrefix(ctx context.Context, prefix string, scope datastore.Scope) (map[key.Key]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := map[key.Key]string{}
	m, ok := s.data[scope]
	if !ok {
		if scope == datastore.Live {
			return nil, errs.Corruption("", "live scope has never been populated")
		}
		return out, nil
	}
	for text, v := range m {
		if !strings.HasPrefix(text, prefix) {
			continue
		}
		k, err := key.Make(key.Data, text)
		if err != nil {
			return nil, errs.Corruption(text, "stored key text is not a valid Data key")
		}
		out[k] = v
	}
	return out, nil
}

func (s *Store) Commit(ctx context.Context) ([]key.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.data[datastore.Pending]
	var promoted []key.Key

	live, ok := s.data[datastore.Live]
	if !ok {
		live = map[string]string{}
		s.data[datastore.Live] = live
	}

	for text, v := range pending {
		if !strings.HasPrefix(text, "settings.") {
			continue
		}
		k, err := key.Make(key.Data, text)
		if err != nil {
			return nil, errs.Corruption(text, "stored key text is not a valid Data key")
		}
		live[text] = v
		promoted = append(promoted, k)
	}

	delete(s.data, datastore.Pending)
	s.writtenScopes[datastore.Live] = true

	sort.Slice(promoted, func(i, j int) bool { return promoted[i].AsText() < promoted[j].AsText() })
	return promoted, nil
}

var _ datastore.Store = (*Store)(nil)
