// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"encoding/binary"
	"os"
	"syscall"
)

// osFileUniqueID wraps an *os.File so it satisfies UniqueIDer, deriving the
// identifier from the file's device and inode numbers. Two descriptors
// open on the same on-disk file (even under different names, e.g. after a
// hard link) report the same ID; the ID is not guaranteed stable across a
// rename-over-replace.
type osFileUniqueID struct {
	*os.File
}

// UniqueID implements vfs.UniqueIDer.
func (f osFileUniqueID) UniqueID(buf []byte) int {
	fi, err := f.Stat()
	if err != nil {
		return 0
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	var scratch [16]byte
	binary.LittleEndian.PutUint64(scratch[0:8], uint64(st.Dev))
	binary.LittleEndian.PutUint64(scratch[8:16], st.Ino)
	return copy(buf, scratch[:])
}
