// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import "fmt"

// SeqNum orders otherwise-identical keys. Within a WAL index's CF tuple
// array, the sequence number is packed alongside the value type into the
// WalEntry's trailing 8 bytes.
type SeqNum uint64

// SeqNumMax is the largest representable sequence number. get_from_handle
// (component F) stamps point lookups resolved directly from a handle with
// this sequence number, since such a lookup has no batch context of its own.
const SeqNumMax SeqNum = 1<<56 - 1

// InternalKeyKind enumerates the kind of value a WalEntry's packed trailer
// describes. Only Value and Merge are legal inside a WAL index; anything
// else observed during CF iteration is a corrupt index.
type InternalKeyKind uint8

// The key kinds a WAL index tuple may carry.
const (
	InternalKeyKindValue InternalKeyKind = 1
	InternalKeyKindMerge InternalKeyKind = 2
)

func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindValue:
		return "VALUE"
	case InternalKeyKindMerge:
		return "MERGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// PackSeqAndKind packs a sequence number and key kind into the 8-byte
// trailer stored as the third field of a WalEntry, low byte first: the kind
// occupies the low 8 bits and the sequence number the high 56.
func PackSeqAndKind(seq SeqNum, kind InternalKeyKind) uint64 {
	return (uint64(seq) << 8) | uint64(kind)
}

// UnpackSeqAndKind reverses PackSeqAndKind.
func UnpackSeqAndKind(packed uint64) (SeqNum, InternalKeyKind) {
	return SeqNum(packed >> 8), InternalKeyKind(packed & 0xff)
}
