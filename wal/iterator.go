// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"github.com/cockroachdb/errors"
	"github.com/petermattis/walblob/internal/base"
	"golang.org/x/exp/mmap"
)

// indexFile is the whole contents of an index file, mapped lazily and
// shared by every CFIterator a BlobReader produces — "since many CFs may
// share the same WAL, only mmap the index file once" (component F).
type indexFile struct {
	r      *mmap.ReaderAt
	size   int64
	footer indexFooter
	// directory holds every CF's index entry, in insertion (append) order —
	// the same order WriteFooter wrote them in, and the order lookups scan.
	directory []cfIndexEntry
}

func openIndexFile(path string) (*indexFile, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "walblob/wal: opening index file")
	}
	size := int64(r.Len())
	if size < IndexFooterSize {
		r.Close()
		return nil, errors.Newf("walblob/wal: index file too small: %d bytes", size)
	}

	var fbuf [IndexFooterSize]byte
	if _, err := r.ReadAt(fbuf[:], size-IndexFooterSize); err != nil {
		r.Close()
		return nil, errors.Wrap(err, "walblob/wal: reading index footer")
	}
	footer := decodeIndexFooter(fbuf[:])

	dirSize := int64(footer.count) * CFIndexEntrySize
	if size-IndexFooterSize < dirSize {
		r.Close()
		return nil, errors.Newf("walblob/wal: index file too small for %d CF entries", footer.count)
	}
	dirBuf := make([]byte, dirSize)
	if dirSize > 0 {
		if _, err := r.ReadAt(dirBuf, size-IndexFooterSize-dirSize); err != nil {
			r.Close()
			return nil, errors.Wrap(err, "walblob/wal: reading CF directory")
		}
	}

	directory := make([]cfIndexEntry, footer.count)
	for i := range directory {
		directory[i] = decodeCFIndexEntry(dirBuf[i*CFIndexEntrySize:])
	}

	return &indexFile{r: r, size: size, footer: footer, directory: directory}, nil
}

// lookupCF resolves cfID to its tuple array's offset and count by a linear
// scan of the directory, matching GetCFWalTupleOffsets: entries are stored
// in insertion order, not sorted by cf_id, so lookup cannot do better than
// linear without an auxiliary structure the format does not provide.
func (f *indexFile) lookupCF(cfID uint32) (offset uint64, count uint64, ok bool) {
	for _, e := range f.directory {
		if e.cfID == cfID {
			offset, count, ok = e.offset, e.count, true
		}
	}
	return offset, count, ok
}

func (r *BlobReader) ensureIndex() (*indexFile, error) {
	r.indexOnce.Do(func() {
		idx, err := openIndexFile(r.indexPath)
		r.index, r.indexErr = idx, err
	})
	return r.index, r.indexErr
}

// CFIterator yields one column family's WAL tuples in the order they were
// written to the index file, verifying that resolved keys are strictly
// increasing as it goes (component F). It holds a non-owning back
// reference to the BlobReader that produced it and must not outlive it.
type CFIterator struct {
	reader *BlobReader
	index  *indexFile
	cmp    base.Compare

	cfOffset uint64
	cfCount  uint64
	i        uint64

	valid   bool
	key     []byte
	value   []byte
	seq     base.SeqNum
	kind    base.InternalKeyKind
	lastKey []byte
}

// NewCFIterator constructs an iterator over cfID's tuples. It triggers the
// reader's lazy index mmap if this is the first iterator requested from
// it. cmp orders keys the same way the engine's comparator does; if nil,
// base.DefaultCompare is used.
func NewCFIterator(reader *BlobReader, cfID uint32, cmp base.Compare) (*CFIterator, error) {
	idx, err := reader.ensureIndex()
	if err != nil {
		return nil, err
	}
	offset, count, ok := idx.lookupCF(cfID)
	if !ok {
		if idx.footer.count != 0 {
			return nil, errors.Wrapf(ErrCFNotFound, "cf_id %d", cfID)
		}
	}
	if offset%EntrySize != 0 {
		return nil, errors.AssertionFailedf("walblob/wal: cf offset %d not entry-aligned", offset)
	}
	if cmp == nil {
		cmp = base.DefaultCompare
	}
	return &CFIterator{reader: reader, index: idx, cmp: cmp, cfOffset: offset, cfCount: count}, nil
}

// SeekToFirst positions the iterator at the first tuple of its column
// family, or leaves it invalid if the column family has no tuples.
func (it *CFIterator) SeekToFirst() error {
	it.i = 0
	it.lastKey = nil
	return it.fetchIfValid()
}

// Next advances to the following tuple.
func (it *CFIterator) Next() error {
	it.i++
	return it.fetchIfValid()
}

// Valid reports whether the iterator is positioned at a tuple.
func (it *CFIterator) Valid() bool { return it.valid }

// Key returns the current tuple's reconstructed key. Valid only while
// Valid() is true and until the next Next call.
func (it *CFIterator) Key() []byte { return it.key }

// Value returns the current tuple's reconstructed value.
func (it *CFIterator) Value() []byte { return it.value }

// Seq returns the current tuple's sequence number.
func (it *CFIterator) Seq() base.SeqNum { return it.seq }

// Kind returns the current tuple's value kind, always either
// InternalKeyKindValue or InternalKeyKindMerge.
func (it *CFIterator) Kind() base.InternalKeyKind { return it.kind }

func (it *CFIterator) fetchIfValid() error {
	if it.i >= it.cfCount {
		it.valid = false
		return nil
	}
	if err := it.fetchKV(); err != nil {
		it.valid = false
		return err
	}
	it.valid = true
	if it.lastKey != nil && it.cmp(it.key, it.lastKey) <= 0 {
		return errors.Wrapf(ErrKeyOrder, "tuple %d", it.i)
	}
	it.lastKey = append(it.lastKey[:0], it.key...)
	return nil
}

func (it *CFIterator) fetchKV() error {
	entryOffset := it.cfOffset + it.i*EntrySize
	var buf [EntrySize]byte
	if _, err := it.index.r.ReadAt(buf[:], int64(entryOffset)); err != nil {
		return errors.Wrap(err, "walblob/wal: reading WAL tuple")
	}
	entry := DecodeEntry(buf[:])
	if entry.Kind != base.InternalKeyKindValue && entry.Kind != base.InternalKeyKindMerge {
		return errors.Wrapf(ErrCorruption, "tuple %d: invalid value kind %d", it.i, entry.Kind)
	}
	it.seq = entry.Seq
	it.kind = entry.Kind

	keyHandle, err := it.reader.GetBlob(entry.KeyHandle)
	if err != nil {
		return errors.Wrap(err, "walblob/wal: fetching tuple key")
	}
	defer it.reader.Release(keyHandle)
	it.key = append([]byte(nil), it.reader.Value(keyHandle)...)

	valueHandle, err := it.reader.GetBlob(entry.ValueHandle)
	if err != nil {
		return errors.Wrap(err, "walblob/wal: fetching tuple value")
	}
	defer it.reader.Release(valueHandle)
	it.value = append([]byte(nil), it.reader.Value(valueHandle)...)

	return nil
}
