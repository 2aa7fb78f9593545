// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "bytes"

// Compare returns -1, 0, or +1 depending on whether a is 'less than', 'equal
// to' or 'greater than' b, according to the engine's key ordering. The CF
// iterator (component F) uses this to enforce that keys it yields are
// strictly increasing.
type Compare func(a, b []byte) int

// DefaultCompare orders keys lexicographically by their uninterpreted bytes.
// It is supplied where a caller has no user-defined key format, and is what
// wal.NewCFIterator uses when given a nil comparator.
func DefaultCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}
