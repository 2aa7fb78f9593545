// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/walblob/internal/crc"
)

// CFIndexEntrySize is the on-disk size of a CF directory entry: cf_id(4) |
// offset(8) | count(8) | crc32(4).
const CFIndexEntrySize = 4 + 8 + 8 + 4

// cfIndexEntry is one row of the index file's trailing directory,
// describing where one column family's sorted tuple array lives.
type cfIndexEntry struct {
	cfID   uint32
	offset uint64
	count  uint64
	crc32  uint32
}

func (e cfIndexEntry) encode(buf []byte) {
	_ = buf[CFIndexEntrySize-1]
	binary.LittleEndian.PutUint32(buf[0:4], e.cfID)
	binary.LittleEndian.PutUint64(buf[4:12], e.offset)
	binary.LittleEndian.PutUint64(buf[12:20], e.count)
	binary.LittleEndian.PutUint32(buf[20:24], e.crc32)
}

func decodeCFIndexEntry(buf []byte) cfIndexEntry {
	_ = buf[CFIndexEntrySize-1]
	return cfIndexEntry{
		cfID:   binary.LittleEndian.Uint32(buf[0:4]),
		offset: binary.LittleEndian.Uint64(buf[4:12]),
		count:  binary.LittleEndian.Uint64(buf[12:20]),
		crc32:  binary.LittleEndian.Uint32(buf[20:24]),
	}
}

// IndexFooterSize is the on-disk size of the trailing footer: count(4) |
// crc32(4).
const IndexFooterSize = 4 + 4

type indexFooter struct {
	count uint32
	crc32 uint32
}

func (f indexFooter) encode(buf []byte) {
	_ = buf[IndexFooterSize-1]
	binary.LittleEndian.PutUint32(buf[0:4], f.count)
	binary.LittleEndian.PutUint32(buf[4:8], f.crc32)
}

func decodeIndexFooter(buf []byte) indexFooter {
	_ = buf[IndexFooterSize-1]
	return indexFooter{
		count: binary.LittleEndian.Uint32(buf[0:4]),
		crc32: binary.LittleEndian.Uint32(buf[4:8]),
	}
}

// IndexAppendableFile is the append-only file capability IndexWriter
// consumes. It mirrors record.AppendableFile; the index file has no block
// framing of its own, so only Append is needed.
type IndexAppendableFile interface {
	Append(p []byte) error
}

// IndexWriter sequentially appends each column family's sorted tuple array
// followed, once, by the directory and footer (component E). No handle is
// emitted externally: a reader locates the footer by subtracting
// IndexFooterSize from the file's end, then the directory by subtracting
// count*CFIndexEntrySize further back.
type IndexWriter struct {
	file    IndexAppendableFile
	offset  uint64
	entries []cfIndexEntry
	footerWritten bool
}

// NewIndexWriter returns an IndexWriter appending to file, an
// assumed-empty index file.
func NewIndexWriter(file IndexAppendableFile) *IndexWriter {
	return &IndexWriter{file: file}
}

// WriteCF appends cfID's sorted tuple array to the index file and records
// its directory entry. entries must already be sorted by key; WriteCF does
// not sort or validate order itself (that is enforced on read, by
// CFIterator, against the engine's comparator).
func (w *IndexWriter) WriteCF(cfID uint32, entries []Entry) error {
	if w.footerWritten {
		return errors.New("walblob/wal: WriteCF called after WriteFooter")
	}
	e := cfIndexEntry{
		cfID:   cfID,
		offset: w.offset,
		count:  uint64(len(entries)),
	}
	var c crc.CRC
	var buf [EntrySize]byte
	for _, entry := range entries {
		entry.Encode(buf[:])
		if err := w.file.Append(buf[:]); err != nil {
			return errors.Wrap(err, "walblob/wal: appending CF tuple")
		}
		c = c.Update(buf[:])
		w.offset += EntrySize
	}
	e.crc32 = uint32(c)
	w.entries = append(w.entries, e)
	return nil
}

// WriteFooter appends the CF directory (in the order WriteCF was called)
// followed by the footer, and must be called exactly once after all
// WriteCF calls.
func (w *IndexWriter) WriteFooter() error {
	if w.footerWritten {
		return errors.New("walblob/wal: WriteFooter called twice")
	}
	w.footerWritten = true

	var c crc.CRC
	var ebuf [CFIndexEntrySize]byte
	for _, e := range w.entries {
		e.encode(ebuf[:])
		if err := w.file.Append(ebuf[:]); err != nil {
			return errors.Wrap(err, "walblob/wal: appending CF directory entry")
		}
		c = c.Update(ebuf[:])
	}

	footer := indexFooter{count: uint32(len(w.entries))}
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], footer.count)
	c = c.Update(countBuf[:])
	footer.crc32 = uint32(c)

	var fbuf [IndexFooterSize]byte
	footer.encode(fbuf[:])
	if err := w.file.Append(fbuf[:]); err != nil {
		return errors.Wrap(err, "walblob/wal: appending index footer")
	}
	return nil
}
