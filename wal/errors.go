// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import "github.com/cockroachdb/errors"

// ErrCorruption is returned by GetBlob when a head, tail, or interior
// fragment checksum does not match the bytes read off disk.
//
// The original implementation this package's algorithms are grounded on
// treats this as a fatal assertion; here it is a typed, recoverable error
// (SPEC_FULL.md §9's open question resolves this in favor of errors, since
// a caller serving reads from a log it does not fully trust should not
// crash the process over one corrupt record).
var ErrCorruption = errors.New("walblob/wal: checksum mismatch")

// ErrCFNotFound is returned when a CFIterator is constructed for a column
// family ID absent from a non-empty index file directory; when the
// directory has no entries at all, NewCFIterator instead returns an
// iterator with no tuples. Promoted from the same silent assertion as
// ErrCorruption, for the same reason.
var ErrCFNotFound = errors.New("walblob/wal: column family not found in index")

// ErrKeyOrder is returned by CFIterator.Next when two consecutive tuples
// are not in strictly increasing key order, which the on-disk format
// guarantees a correctly-written index file never violates.
var ErrKeyOrder = errors.New("walblob/wal: index tuples out of order")
