// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package record implements the block/fragment wire format shared by the
// WAL writer and blob reader: the file is a sequence of fixed 32 KiB
// blocks, and a logical record is fragmented into one or more headered
// chunks that never cross a block boundary.
//
// The wire format is that the stream is divided into 32KiB blocks, and each
// block contains a number of tightly packed chunks. Chunks cannot cross
// block boundaries. The last block may be shorter than 32 KiB. Any unused
// bytes in a block are zeroed.
//
// A record maps to one or more chunks. There are two chunk formats: legacy
// and recyclable. The legacy chunk format:
//
//	+----------+-----------+-----------+--- ... ---+
//	| CRC (4B) | Size (2B) | Type (1B) | Payload   |
//	+----------+-----------+-----------+--- ... ---+
//
// CRC is computed over the type and payload. Size is the length of the
// payload in bytes. Type is the chunk type.
//
// There are four chunk positions: whether the chunk is the full record, or
// the first, middle or last chunk of a multi-chunk record. A multi-chunk
// record has one first chunk, zero or more middle chunks, and one last
// chunk.
//
// The recyclable chunk format extends the chunk header with an additional
// log number field, allowing a log file to be reused (recycled) by a later
// writer without needing to truncate or rewrite the file's metadata:
//
//	+----------+-----------+-----------+----------------+--- ... ---+
//	| CRC (4B) | Size (2B) | Type (1B) | Log number (4B)| Payload   |
//	+----------+-----------+-----------+----------------+--- ... ---+
//
// Recyclable chunks are distinguished from legacy chunks by 4 extra chunk
// type values that map to the same four positions. The CRC additionally
// covers the log number. This subsystem's Writer never emits recyclable
// chunks (log file recycling is out of scope at the append path) but the
// decoder still recognizes them so that legacy recycled logs remain
// readable.
package record

// These constants are part of the wire format and must not be changed.
const (
	invalidChunkEncoding = 0

	fullChunkEncoding   = 1
	firstChunkEncoding  = 2
	middleChunkEncoding = 3
	lastChunkEncoding   = 4

	recyclableFullChunkEncoding   = 5
	recyclableFirstChunkEncoding  = 6
	recyclableMiddleChunkEncoding = 7
	recyclableLastChunkEncoding   = 8

	// The WAL-sync variants are a read-only format extension (see
	// SPEC_FULL.md §3): this subsystem's Writer never produces them, but
	// DecodeHeader recognizes them so a log written by a wal-sync-capable
	// writer can still be reconstructed.
	walSyncFullChunkEncoding   = 9
	walSyncFirstChunkEncoding  = 10
	walSyncMiddleChunkEncoding = 11
	walSyncLastChunkEncoding   = 12
)

// BlockSize is the fixed size of a physical block. The file is a
// concatenation of blocks; the final block may be short.
const BlockSize = 32 * 1024

const (
	blockSizeMask = BlockSize - 1

	// LegacyHeaderSize is the size of a legacy chunk header: crc32c(4) |
	// length_lo(1) | length_hi(1) | type(1).
	LegacyHeaderSize = 7
	// RecyclableHeaderSize is the size of a recyclable chunk header: the
	// legacy header followed by a 4-byte low-32-bits-of-log-number field.
	RecyclableHeaderSize = LegacyHeaderSize + 4
	// walSyncHeaderSize extends the recyclable header with an 8-byte
	// synced-offset field (see the WAL-sync chunk encodings above).
	walSyncHeaderSize = RecyclableHeaderSize + 8
)

// ChunkPosition describes where in a (possibly multi-chunk) logical record a
// chunk falls.
type ChunkPosition int

// The four chunk positions.
const (
	InvalidChunkPosition ChunkPosition = iota
	FullChunkPosition
	FirstChunkPosition
	MiddleChunkPosition
	LastChunkPosition
)

type wireFormat int

const (
	invalidWireFormat wireFormat = iota
	legacyWireFormat
	recyclableWireFormat
	walSyncWireFormat
)

type headerFormat struct {
	position   ChunkPosition
	wireFormat wireFormat
	headerSize int
}

var headerFormatMappings = [...]headerFormat{
	invalidChunkEncoding:          {InvalidChunkPosition, invalidWireFormat, 0},
	fullChunkEncoding:             {FullChunkPosition, legacyWireFormat, LegacyHeaderSize},
	firstChunkEncoding:            {FirstChunkPosition, legacyWireFormat, LegacyHeaderSize},
	middleChunkEncoding:           {MiddleChunkPosition, legacyWireFormat, LegacyHeaderSize},
	lastChunkEncoding:             {LastChunkPosition, legacyWireFormat, LegacyHeaderSize},
	recyclableFullChunkEncoding:   {FullChunkPosition, recyclableWireFormat, RecyclableHeaderSize},
	recyclableFirstChunkEncoding:  {FirstChunkPosition, recyclableWireFormat, RecyclableHeaderSize},
	recyclableMiddleChunkEncoding: {MiddleChunkPosition, recyclableWireFormat, RecyclableHeaderSize},
	recyclableLastChunkEncoding:   {LastChunkPosition, recyclableWireFormat, RecyclableHeaderSize},
	walSyncFullChunkEncoding:      {FullChunkPosition, walSyncWireFormat, walSyncHeaderSize},
	walSyncFirstChunkEncoding:     {FirstChunkPosition, walSyncWireFormat, walSyncHeaderSize},
	walSyncMiddleChunkEncoding:    {MiddleChunkPosition, walSyncWireFormat, walSyncHeaderSize},
	walSyncLastChunkEncoding:      {LastChunkPosition, walSyncWireFormat, walSyncHeaderSize},
}
