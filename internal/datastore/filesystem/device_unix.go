// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package filesystem

import (
	"io/fs"
	"syscall"
)

// deviceOf returns the device ID backing info, used by ListPopulatedKeys to
// detect and refuse to cross filesystem boundaries during its walk.
func deviceOf(info fs.FileInfo) uint64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(stat.Dev) //nolint:unconvert // Dev's width varies by GOOS
	}
	return 0
}
