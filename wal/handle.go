// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package wal implements the blob-retrieval half of the write-ahead log
// subsystem: reconstructing logically-contiguous payloads out of the
// fragmented, checksummed blocks record.Writer emits, and the secondary
// per-column-family index that lets a column family's tuples be iterated
// without re-scanning the log.
package wal

import "encoding/binary"

// HandleSize is the on-disk size of an encoded Handle: offset (8), length
// (4), headCRC (2), tailCRC (2).
const HandleSize = 16

// Handle is a fixed-width, self-describing pointer into one log file
// (component C, "DefaultLogHandle"). It is the only thing the index file
// stores; a file-unique prefix plus the handle's bytes form a cache key.
type Handle struct {
	// Offset is the absolute byte offset, within the log file, of the
	// first payload byte of the record's first fragment — i.e. just past
	// that fragment's header.
	Offset uint64
	// Length is the logical payload length, summed across all fragments.
	Length uint32
	// HeadCRC is the CRC16C of the first head_size bytes of the
	// reconstructed payload, where head_size equals BlockSize minus
	// (Offset mod BlockSize) if the record spans blocks, else Length.
	HeadCRC uint16
	// TailCRC is the CRC16C of the last tail_size bytes of the
	// reconstructed payload.
	TailCRC uint16
}

// Encode writes the handle's packed little-endian representation into buf,
// which must be at least HandleSize bytes.
func (h Handle) Encode(buf []byte) {
	_ = buf[HandleSize-1]
	binary.LittleEndian.PutUint64(buf[0:8], h.Offset)
	binary.LittleEndian.PutUint32(buf[8:12], h.Length)
	binary.LittleEndian.PutUint16(buf[12:14], h.HeadCRC)
	binary.LittleEndian.PutUint16(buf[14:16], h.TailCRC)
}

// Bytes returns the handle's packed little-endian encoding as a new slice.
func (h Handle) Bytes() []byte {
	var buf [HandleSize]byte
	h.Encode(buf[:])
	return buf[:]
}

// DecodeHandle decodes a Handle from the first HandleSize bytes of buf.
func DecodeHandle(buf []byte) Handle {
	_ = buf[HandleSize-1]
	return Handle{
		Offset:  binary.LittleEndian.Uint64(buf[0:8]),
		Length:  binary.LittleEndian.Uint32(buf[8:12]),
		HeadCRC: binary.LittleEndian.Uint16(buf[12:14]),
		TailCRC: binary.LittleEndian.Uint16(buf[14:16]),
	}
}
