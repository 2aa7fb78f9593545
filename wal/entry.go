// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"encoding/binary"

	"github.com/petermattis/walblob/internal/base"
)

// EntrySize is the on-disk size of an encoded Entry: two handles plus an
// 8-byte packed (sequence number, kind) trailer.
const EntrySize = 2*HandleSize + 8

// Entry is a column family's WAL tuple ("WalEntry"): a pair of handles
// pointing at the key's and value's blobs, plus the packed sequence number
// and value kind the tuple was written with. This is what the index file
// stores, sorted per column family by key.
type Entry struct {
	KeyHandle   Handle
	ValueHandle Handle
	Seq         base.SeqNum
	Kind        base.InternalKeyKind
}

// Encode writes the entry's packed little-endian representation into buf,
// which must be at least EntrySize bytes.
func (e Entry) Encode(buf []byte) {
	_ = buf[EntrySize-1]
	e.KeyHandle.Encode(buf[0:HandleSize])
	e.ValueHandle.Encode(buf[HandleSize : 2*HandleSize])
	packed := base.PackSeqAndKind(e.Seq, e.Kind)
	binary.LittleEndian.PutUint64(buf[2*HandleSize:EntrySize], packed)
}

// Bytes returns the entry's packed little-endian encoding as a new slice.
func (e Entry) Bytes() []byte {
	var buf [EntrySize]byte
	e.Encode(buf[:])
	return buf[:]
}

// DecodeEntry decodes an Entry from the first EntrySize bytes of buf.
func DecodeEntry(buf []byte) Entry {
	_ = buf[EntrySize-1]
	packed := binary.LittleEndian.Uint64(buf[2*HandleSize : EntrySize])
	seq, kind := base.UnpackSeqAndKind(packed)
	return Entry{
		KeyHandle:   DecodeHandle(buf[0:HandleSize]),
		ValueHandle: DecodeHandle(buf[HandleSize : 2*HandleSize]),
		Seq:         seq,
		Kind:        kind,
	}
}
