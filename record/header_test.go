// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/petermattis/walblob/internal/crc"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	payload := []byte("hello world")
	var buf [RecyclableHeaderSize]byte

	for _, tc := range []struct {
		position   ChunkPosition
		recyclable bool
		logNumber  uint32
	}{
		{FullChunkPosition, false, 0},
		{FirstChunkPosition, false, 0},
		{MiddleChunkPosition, false, 0},
		{LastChunkPosition, false, 0},
		{FullChunkPosition, true, 42},
		{MiddleChunkPosition, true, 7},
	} {
		n := EncodeHeader(buf[:], tc.position, tc.recyclable, tc.logNumber, payload)
		if tc.recyclable && n != RecyclableHeaderSize {
			t.Fatalf("got header size %d, want %d", n, RecyclableHeaderSize)
		}
		if !tc.recyclable && n != LegacyHeaderSize {
			t.Fatalf("got header size %d, want %d", n, LegacyHeaderSize)
		}

		h, err := DecodeHeader(buf[:n])
		if err != nil {
			t.Fatalf("DecodeHeader: %v", err)
		}
		if h.Position != tc.position {
			t.Fatalf("got position %v, want %v", h.Position, tc.position)
		}
		if h.Recyclable != tc.recyclable {
			t.Fatalf("got recyclable %v, want %v", h.Recyclable, tc.recyclable)
		}
		if h.Length != len(payload) {
			t.Fatalf("got length %d, want %d", h.Length, len(payload))
		}
		if tc.recyclable && h.LogNumber != tc.logNumber {
			t.Fatalf("got log number %d, want %d", h.LogNumber, tc.logNumber)
		}
		if !VerifyChecksum(h, payload) {
			t.Fatalf("checksum did not verify for %+v", tc)
		}
		corrupt := bytes.Clone(payload)
		corrupt[0] ^= 0xff
		if VerifyChecksum(h, corrupt) {
			t.Fatalf("checksum verified over corrupted payload for %+v", tc)
		}
	}
}

// TestVerifyChecksumWalSync hand-assembles a WAL-sync-format chunk header
// the way an external wal-sync-capable writer would (record.Writer itself
// never emits this format), and checks that DecodeHeader/VerifyChecksum
// recompute the same CRC that was hashed in: the WAL-sync encoding byte is
// numerically distinct from, but the same chunk position and Recyclable-ness
// as, the ordinary recyclable encoding, so a naive recomputation keyed only
// on (Position, Recyclable) would seed from the wrong type-byte CRC and
// silently drop the 8-byte sync-offset field from the hash.
func TestVerifyChecksumWalSync(t *testing.T) {
	payload := []byte("wal sync payload")
	const logNumber uint32 = 99
	const syncOffset uint64 = 123456

	var buf [walSyncHeaderSize]byte
	binary.LittleEndian.PutUint16(buf[4:6], uint16(len(payload)))
	buf[6] = walSyncMiddleChunkEncoding
	binary.LittleEndian.PutUint32(buf[7:11], logNumber)
	binary.LittleEndian.PutUint64(buf[11:19], syncOffset)

	c := typeCRC[walSyncMiddleChunkEncoding]
	c = c.Update(buf[7:11])
	c = c.Update(buf[11:19])
	c = c.Update(payload)
	binary.LittleEndian.PutUint32(buf[0:4], c.Value())

	h, err := DecodeHeader(buf[:])
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Position != MiddleChunkPosition {
		t.Fatalf("got position %v, want MiddleChunkPosition", h.Position)
	}
	if !h.Recyclable {
		t.Fatalf("got Recyclable = false, want true")
	}
	if h.Encoding != walSyncMiddleChunkEncoding {
		t.Fatalf("got encoding %d, want %d", h.Encoding, walSyncMiddleChunkEncoding)
	}
	if h.SyncOffset != syncOffset {
		t.Fatalf("got sync offset %d, want %d", h.SyncOffset, syncOffset)
	}
	if !VerifyChecksum(h, payload) {
		t.Fatalf("checksum did not verify for a well-formed WAL-sync chunk")
	}
	corrupt := bytes.Clone(payload)
	corrupt[0] ^= 0xff
	if VerifyChecksum(h, corrupt) {
		t.Fatalf("checksum verified over corrupted payload")
	}
}

func TestDecodeHeaderInvalidEncoding(t *testing.T) {
	var buf [LegacyHeaderSize]byte
	buf[6] = 0xff // no such encoding
	if _, err := DecodeHeader(buf[:]); err != ErrInvalidChunk {
		t.Fatalf("got %v, want ErrInvalidChunk", err)
	}
}

// TestCRCMasking checks unmask(mask(x)) == x for a range of values,
// including the all-ones input, and that none of these inputs masks to the
// all-ones value.
func TestCRCMasking(t *testing.T) {
	for _, x := range []uint32{0, 1, 0xffffffff, 0x12345678, 0xa282ead8} {
		c := crc.CRC(x)
		masked := c.Value()
		if masked == 0xffffffff {
			t.Fatalf("mask(%#x) produced the reserved all-ones value", x)
		}
		if got := crc.Unmask(masked); uint32(got) != x {
			t.Fatalf("Unmask(Value(%#x)) = %#x, want %#x", x, uint32(got), x)
		}
	}
}

// TestPhysicalLengthScenarios checks the worked examples from SPEC_FULL.md
// §8 (Testable Properties → End-to-end scenarios).
func TestPhysicalLengthScenarios(t *testing.T) {
	const headerSize = 7

	// Scenario 2: single-block record, offset 7, length 100.
	if got, want := PhysicalLength(100, 7, headerSize), int64(100); got != want {
		t.Fatalf("single-block: got %d, want %d", got, want)
	}

	// Scenario 3: two-block record. Writer starts at blockOffset 32762 (6
	// bytes free), pads and begins the record at offset BlockSize+7 =
	// 32775. head_size = 32768-7 = 32761, tail_size = 42, so logical
	// length = 32761+42 = 32803 and physical = 32761+7+42 = 32810.
	offset := int64(BlockSize + headerSize)
	length := int64(32761 + 42)
	if got, want := PhysicalLength(length, offset, headerSize), int64(32810); got != want {
		t.Fatalf("two-block: got %d, want %d", got, want)
	}

	// Scenario 4: payload length 3*(32768-7)+5 starting at offset 7, which
	// spans four blocks (FIRST, two MIDDLEs, and a 5-byte LAST).
	offset = headerSize
	length = 3*(BlockSize-headerSize) + 5
	headSize := int64(BlockSize) - offset
	tailSize := (length - headSize) % int64(BlockSize-headerSize)
	wantPhysical := headSize + 2*int64(BlockSize) + int64(headerSize) + tailSize
	if got := PhysicalLength(length, offset, headerSize); got != wantPhysical {
		t.Fatalf("three-block: got %d, want %d", got, wantPhysical)
	}
}

func TestPhysicalLengthNoTailRemainder(t *testing.T) {
	const headerSize = 7
	// When the remainder divides the per-block capacity exactly, physical
	// length must not include a trailing header for a zero-length tail.
	offset := int64(headerSize)
	perBlock := int64(BlockSize - headerSize)
	length := (BlockSize - headerSize) + 2*perBlock
	got := PhysicalLength(length, offset, headerSize)
	want := (BlockSize - headerSize) + 2*BlockSize
	if got != int64(want) {
		t.Fatalf("got %d, want %d", got, want)
	}
}
