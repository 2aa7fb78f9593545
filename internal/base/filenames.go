// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/redact"
)

// A DiskFileNum identifies a log file or index file on disk. The low 32 bits
// are what gets embedded in a recyclable record header's log-number field.
type DiskFileNum uint64

func (dfn DiskFileNum) String() string { return fmt.Sprintf("%06d", dfn) }

// SafeFormat implements redact.SafeFormatter.
func (dfn DiskFileNum) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("%06d", redact.SafeUint(dfn))
}

// FileType enumerates the on-disk file kinds this subsystem produces.
type FileType int

// The FileType enumeration.
const (
	FileTypeLog FileType = iota
	FileTypeIndex
)

var fileTypeStrings = [...]string{
	FileTypeLog:   "log",
	FileTypeIndex: "index",
}

// SafeFormat implements redact.SafeFormatter.
func (ft FileType) SafeFormat(w redact.SafePrinter, _ rune) {
	if ft < 0 || int(ft) >= len(fileTypeStrings) {
		w.Print(redact.SafeString("unknown"))
		return
	}
	w.Print(redact.SafeString(fileTypeStrings[ft]))
}

// String implements fmt.Stringer.
func (ft FileType) String() string {
	return redact.StringWithoutMarkers(ft)
}

// MakeFilename builds a filename from components. WAL files are named
// "<dfn>.log"; the sibling index file that carries the per-CF directory is
// named "<dfn>.windex".
func MakeFilename(fileType FileType, dfn DiskFileNum) string {
	switch fileType {
	case FileTypeLog:
		return fmt.Sprintf("%s.log", dfn)
	case FileTypeIndex:
		return fmt.Sprintf("%s.windex", dfn)
	}
	panic("unreachable")
}

// ParseFilename parses the components from a filename produced by
// MakeFilename.
func ParseFilename(filename string) (fileType FileType, dfn DiskFileNum, ok bool) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return 0, 0, false
	}
	dfn, ok = ParseDiskFileNum(filename[:i])
	if !ok {
		return 0, 0, false
	}
	switch filename[i+1:] {
	case "log":
		return FileTypeLog, dfn, true
	case "windex":
		return FileTypeIndex, dfn, true
	}
	return 0, dfn, false
}

// ParseDiskFileNum parses the provided string as a disk file number.
func ParseDiskFileNum(s string) (dfn DiskFileNum, ok bool) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return dfn, false
	}
	return DiskFileNum(u), true
}
