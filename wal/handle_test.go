// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"testing"

	"github.com/petermattis/walblob/internal/base"
	"github.com/stretchr/testify/require"
)

func TestHandleEncodeDecodeRoundTrip(t *testing.T) {
	h := Handle{Offset: 1 << 40, Length: 12345, HeadCRC: 0xbeef, TailCRC: 0xcafe}
	var buf [HandleSize]byte
	h.Encode(buf[:])
	require.Equal(t, h, DecodeHandle(buf[:]))
	require.Equal(t, buf[:], h.Bytes())
}

func TestEntryEncodeDecodeRoundTrip(t *testing.T) {
	e := Entry{
		KeyHandle:   Handle{Offset: 7, Length: 1, HeadCRC: 1},
		ValueHandle: Handle{Offset: 200, Length: 10, HeadCRC: 2, TailCRC: 3},
		Seq:         42,
		Kind:        base.InternalKeyKindMerge,
	}
	var buf [EntrySize]byte
	e.Encode(buf[:])
	got := DecodeEntry(buf[:])
	require.Equal(t, e, got)
}
