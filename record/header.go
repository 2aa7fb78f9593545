// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/walblob/internal/crc"
)

// ErrInvalidChunk is returned by DecodeHeader when the buffer is shorter
// than the chunk header or the header's encoding byte is zero or
// unrecognized. Lengths are not checked against the block, and checksums
// are checked separately by VerifyChecksum.
var ErrInvalidChunk = errors.New("walblob/record: invalid chunk")

// Header describes a decoded chunk header (component A of the block/record
// codec).
type Header struct {
	Position ChunkPosition
	// Recyclable is set for both the recyclable and WAL-sync wire
	// formats: both extend the legacy header with a log-number field.
	// Encoding (the raw on-disk type byte) is what distinguishes them
	// for CRC recomputation purposes.
	Recyclable bool
	// Encoding is the decoded chunk's on-disk type byte. VerifyChecksum
	// re-seeds its CRC from typeCRC[Encoding] rather than rederiving an
	// encoding from Position/Recyclable, so a WAL-sync chunk (encoding
	// 9-12) is never confused with the otherwise-identical-shaped
	// recyclable chunk (encoding 5-8) it would collide with under a
	// (Position, Recyclable) pair alone.
	Encoding   byte
	Length     int
	LogNumber  uint32
	SyncOffset uint64
	StoredCRC  uint32
	HeaderSize int
}

// HeaderSize returns the on-disk header size for a writer configured with
// the given recycle setting. The recyclable header is forbidden at the
// append path (Non-goals, SPEC_FULL.md §1) but the constant is still
// exposed so readers can size legacy recyclable logs.
func HeaderSize(recyclable bool) int {
	if recyclable {
		return RecyclableHeaderSize
	}
	return LegacyHeaderSize
}

// typeCRC holds crc32c(type-byte) for each of the 13 chunk encodings,
// precomputed once so EncodeHeader can extend it instead of hashing the
// single type byte for every fragment it writes.
var typeCRC = func() [len(headerFormatMappings)]crc.CRC {
	var t [len(headerFormatMappings)]crc.CRC
	for i := range t {
		t[i] = crc.New([]byte{byte(i)})
	}
	return t
}()

func chunkEncoding(position ChunkPosition, recyclable bool) byte {
	switch position {
	case FullChunkPosition:
		if recyclable {
			return recyclableFullChunkEncoding
		}
		return fullChunkEncoding
	case FirstChunkPosition:
		if recyclable {
			return recyclableFirstChunkEncoding
		}
		return firstChunkEncoding
	case MiddleChunkPosition:
		if recyclable {
			return recyclableMiddleChunkEncoding
		}
		return middleChunkEncoding
	case LastChunkPosition:
		if recyclable {
			return recyclableLastChunkEncoding
		}
		return lastChunkEncoding
	default:
		panic("walblob/record: invalid chunk position")
	}
}

// EncodeHeader fills buf[:headerSize] with the header for a chunk at the
// given position carrying payload, and returns headerSize. buf must have
// length at least RecyclableHeaderSize. The CRC is computed over the
// encoding byte, the log number (if recyclable), and payload, then masked
// per the storage-safe transform documented in package crc.
func EncodeHeader(
	buf []byte, position ChunkPosition, recyclable bool, logNumber uint32, payload []byte,
) int {
	encoding := chunkEncoding(position, recyclable)
	headerSize := HeaderSize(recyclable)

	buf[4] = byte(len(payload))
	buf[5] = byte(len(payload) >> 8)
	buf[6] = encoding

	c := typeCRC[encoding]
	if recyclable {
		binary.LittleEndian.PutUint32(buf[7:11], logNumber)
		c = c.Update(buf[7:11])
	}
	c = c.Update(payload)
	binary.LittleEndian.PutUint32(buf[0:4], c.Value())

	return headerSize
}

// DecodeHeader parses the chunk header at the start of buf. It returns
// ErrInvalidChunk if the encoding byte is unrecognized; it does not validate
// the checksum, which requires the payload bytes that follow the header
// (see VerifyChecksum).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < LegacyHeaderSize {
		return Header{}, ErrInvalidChunk
	}
	storedCRC := binary.LittleEndian.Uint32(buf[0:4])
	length := int(binary.LittleEndian.Uint16(buf[4:6]))
	encoding := buf[6]
	if int(encoding) >= len(headerFormatMappings) {
		return Header{}, ErrInvalidChunk
	}
	hf := headerFormatMappings[encoding]
	if hf.wireFormat == invalidWireFormat {
		return Header{}, ErrInvalidChunk
	}
	h := Header{
		Position:   hf.position,
		Recyclable: hf.wireFormat != legacyWireFormat,
		Encoding:   encoding,
		Length:     length,
		StoredCRC:  storedCRC,
		HeaderSize: hf.headerSize,
	}
	if h.Recyclable {
		if len(buf) < hf.headerSize {
			return Header{}, ErrInvalidChunk
		}
		h.LogNumber = binary.LittleEndian.Uint32(buf[7:11])
	}
	if hf.wireFormat == walSyncWireFormat {
		h.SyncOffset = binary.LittleEndian.Uint64(buf[11:19])
	}
	return h, nil
}

// VerifyChecksum recomputes the masked CRC over h's encoding byte, log
// number and sync offset (if any, per h's actual on-disk wire format), and
// payload, and reports whether it matches h.StoredCRC. It re-seeds from
// h.Encoding directly rather than rederiving an encoding byte from
// (h.Position, h.Recyclable), since that pair cannot distinguish a
// recyclable chunk from a WAL-sync chunk of the same position.
func VerifyChecksum(h Header, payload []byte) bool {
	c := typeCRC[h.Encoding]
	if h.Recyclable {
		var ln [4]byte
		binary.LittleEndian.PutUint32(ln[:], h.LogNumber)
		c = c.Update(ln[:])
	}
	if h.HeaderSize == walSyncHeaderSize {
		var so [8]byte
		binary.LittleEndian.PutUint64(so[:], h.SyncOffset)
		c = c.Update(so[:])
	}
	c = c.Update(payload)
	return c.Value() == h.StoredCRC
}

// PhysicalLength returns the number of on-disk bytes a record of the given
// logical length occupies when its first payload byte begins at offset,
// given headerSize bytes of header per fragment.
//
// Derivation: availFirst is the number of bytes available in the block that
// offset falls in. If the whole record fits there, physical length equals
// logical length. Otherwise the remainder is fragmented across further
// blocks of headerSize-prefixed payload; physical length is the first
// fragment's payload plus however many further whole blocks are needed plus
// a final partial block (header + remaining tail bytes), or nothing more if
// the remainder divides evenly.
func PhysicalLength(logicalLength, offset int64, headerSize int) int64 {
	availFirst := BlockSize - offset%BlockSize
	if logicalLength <= availFirst {
		return logicalLength
	}
	rest := logicalLength - availFirst
	perBlock := int64(BlockSize - headerSize)
	full := rest / perBlock
	tail := rest % perBlock
	physical := availFirst + full*BlockSize
	if tail != 0 {
		physical += int64(headerSize) + tail
	}
	return physical
}
