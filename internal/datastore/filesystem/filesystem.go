// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package filesystem realizes datastore.Store on disk: a base directory
// with sibling live/ and pending/ trees mirroring the key hierarchy, one
// regular file per data key, with metadata stored as "<data file>.<meta>"
// siblings in the same directory.
package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"settingsd/internal/datastore"
	"settingsd/internal/errs"
	"settingsd/internal/key"
	"settingsd/pkg/logging"
)

// Store is the filesystem realization of datastore.Store.
type Store struct {
	base   string
	logger logging.Logger
}

// New creates a filesystem-backed Store rooted at base. base is not created
// here; it is created lazily by the first write.
func New(base string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogger(false)
	}
	return &Store{base: filepath.Clean(base), logger: logger}
}

func scopeDir(base string, scope datastore.Scope) string {
	return filepath.Join(base, scope.String())
}

// dataPath returns the on-disk path for k in scope, verified to be a
// descendant of base/<scope>/. Key validation already excludes "." and ".."
// segments, but this check is defence in depth against any other way a
// traversal could be constructed.
func dataPath(base string, scope datastore.Scope, k key.Key) (string, error) {
	root := scopeDir(base, scope)
	rel := filepath.Join(k.Segments()...)
	full := filepath.Join(root, rel)
	if !isDescendant(root, full) {
		return "", errs.PathTraversal(full)
	}
	return full, nil
}

// metadataPath returns the sibling file for metadata key m about data key d:
// the data file's path with ".{m}" appended to its basename.
func metadataPath(base string, scope datastore.Scope, m key.Key, d key.Key) (string, error) {
	dp, err := dataPath(base, scope, d)
	if err != nil {
		return "", err
	}
	full := dp + "." + m.AsText()
	root := scopeDir(base, scope)
	if !isDescendant(root, full) {
		return "", errs.PathTraversal(full)
	}
	return full, nil
}

// isDescendant reports whether full is a strict descendant of root (full !=
// root, and root is a path prefix of full at a segment boundary).
func isDescendant(root, full string) bool {
	root = filepath.Clean(root)
	full = filepath.Clean(full)
	if full == root {
		return false
	}
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}

func (s *Store) KeyPopulated(ctx context.Context, k key.Key, scope datastore.Scope) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := dataPath(s.base, scope, k)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errs.IO(path, err)
	}
	return info.Mode().IsRegular(), nil
}

func (s *Store) GetKey(ctx context.Context, k key.Key, scope datastore.Scope) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	path, err := dataPath(s.base, scope, k)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is validated to be a descendant of the scope root
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.IO(path, err)
	}
	return string(data), true, nil
}

func (s *Store) SetKey(ctx context.Context, k key.Key, value string, scope datastore.Scope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := dataPath(s.base, scope, k)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errs.IO(filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(value), 0o640); err != nil {
		return errs.IO(path, err)
	}
	return nil
}

func (s *Store) SetKeys(ctx context.Context, values map[key.Key]string, scope datastore.Scope) error {
	// Deterministic order makes failures reproducible even though the
	// contract leaves ordering unspecified.
	keys := make([]key.Key, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].AsText() < keys[j].AsText() })

	for _, k := range keys {
		if err := s.SetKey(ctx, k, values[k], scope); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, meta key.Key, data key.Key) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	path, err := metadataPath(s.base, datastore.Live, meta, data)
	if err != nil {
		return "", false, err
	}
	raw, err := os.ReadFile(path) //nolint:gosec // path is validated to be a descendant of the scope root
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.IO(path, err)
	}
	return string(raw), true, nil
}

func (s *Store) SetMetadata(ctx context.Context, meta key.Key, data key.Key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := metadataPath(s.base, datastore.Live, meta, data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errs.IO(filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(value), 0o640); err != nil {
		return errs.IO(path, err)
	}
	return nil
}

func (s *Store) GetPrefix(ctx context.Context, prefix string, scope datastore.Scope) (map[key.Key]string, error) {
	keys, err := s.ListPopulatedKeys(ctx, prefix, scope)
	if err != nil {
		return nil, err
	}
	out := make(map[key.Key]string, len(keys))
	for _, k := range keys {
		v, ok, err := s.GetKey(ctx, k, scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.Corruption(k.AsText(), "key listed but not readable")
		}
		out[k] = v
	}
	return out, nil
}

// ListPopulatedKeys walks base/<scope>/ depth-first, skipping symlinks and
// not crossing filesystem boundaries. A regular file qualifies as a data key
// iff its basename alone is a valid Meta-kind key (no dot, matches the
// shared character class); this automatically excludes "<name>.<meta>"
// metadata siblings. Directories and other non-regular entries are skipped.
func (s *Store) ListPopulatedKeys(ctx context.Context, prefix string, scope datastore.Scope) ([]key.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root := scopeDir(s.base, scope)
	rootInfo, err := os.Lstat(root)
	if errors.Is(err, fs.ErrNotExist) {
		if scope == datastore.Live {
			return nil, errs.Corruption(root, "live scope has never been populated")
		}
		return nil, nil
	}
	if err != nil {
		return nil, errs.IO(root, err)
	}
	rootDevice := deviceOf(rootInfo)

	var texts []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errs.IO(path, err)
		}
		if path == root {
			return nil
		}

		info, lerr := os.Lstat(path)
		if lerr != nil {
			return errs.IO(path, lerr)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return nil // skip symlinks entirely, do not follow
		}
		if d.IsDir() {
			if deviceOf(info) != rootDevice {
				return filepath.SkipDir // do not cross filesystem boundaries
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return errs.IO(path, rerr)
		}
		base := filepath.Base(rel)
		if _, err := key.Make(key.Meta, base); err != nil {
			// Not a bare single-segment name: either it's a "<data>.<meta>"
			// metadata sibling, or the path isn't UTF-8/valid at all.
			return nil
		}

		text := strings.ReplaceAll(filepath.ToSlash(rel), "/", ".")
		if strings.HasPrefix(text, prefix) {
			texts = append(texts, text)
		}
		return nil
	})
	if walkErr != nil {
		var asErr *errs.Error
		if errors.As(walkErr, &asErr) {
			return nil, walkErr
		}
		return nil, errs.IO(root, walkErr)
	}

	sort.Strings(texts)
	out := make([]key.Key, 0, len(texts))
	for _, text := range texts {
		k, err := key.Make(key.Data, text)
		if err != nil {
			return nil, errs.Corruption(text, "path decodes to an invalid Data key")
		}
		out = append(out, k)
	}
	return out, nil
}

// Commit copies all populated pending data keys under "settings." into live,
// then recursively removes the pending directory. Not crash-atomic: a
// process death mid-copy can leave live partially updated with pending still
// present; recovery relies on defaults repopulation and the next commit.
func (s *Store) Commit(ctx context.Context) ([]key.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A never-written Pending scope lists as empty, so there is nothing to
	// commit; any error here is real and is reported.
	pendingValues, err := s.GetPrefix(ctx, "settings.", datastore.Pending)
	if err != nil {
		return nil, err
	}

	if err := s.SetKeys(ctx, pendingValues, datastore.Live); err != nil {
		return nil, err
	}

	pendingRoot := scopeDir(s.base, datastore.Pending)
	if err := os.RemoveAll(pendingRoot); err != nil {
		s.logger.Error("failed to remove pending directory after commit",
			logging.NewField("path", pendingRoot), logging.NewField("error", err.Error()))
		return nil, errs.IO(pendingRoot, err)
	}

	promoted := make([]key.Key, 0, len(pendingValues))
	for k := range pendingValues {
		promoted = append(promoted, k)
	}
	sort.Slice(promoted, func(i, j int) bool { return promoted[i].AsText() < promoted[j].AsText() })
	return promoted, nil
}

var _ datastore.Store = (*Store)(nil)
