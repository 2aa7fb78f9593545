// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"bytes"
	"testing"

	"github.com/petermattis/walblob/internal/crc"
	"github.com/stretchr/testify/require"
)

type bufAppender struct{ buf bytes.Buffer }

func (a *bufAppender) Append(p []byte) error {
	_, err := a.buf.Write(p)
	return err
}

func TestIndexWriterLayout(t *testing.T) {
	af := &bufAppender{}
	iw := NewIndexWriter(af)

	cf1 := []Entry{{KeyHandle: Handle{Offset: 7, Length: 1}, ValueHandle: Handle{Offset: 20, Length: 2}, Seq: 1}}
	cf7 := []Entry{
		{KeyHandle: Handle{Offset: 100, Length: 3}, ValueHandle: Handle{Offset: 120, Length: 4}, Seq: 2},
		{KeyHandle: Handle{Offset: 200, Length: 5}, ValueHandle: Handle{Offset: 220, Length: 6}, Seq: 3},
	}
	require.NoError(t, iw.WriteCF(1, cf1))
	require.NoError(t, iw.WriteCF(7, cf7))
	require.NoError(t, iw.WriteFooter())

	data := af.buf.Bytes()
	tupleBytes := len(cf1)*EntrySize + len(cf7)*EntrySize
	dirBytes := 2 * CFIndexEntrySize
	require.Equal(t, tupleBytes+dirBytes+IndexFooterSize, len(data))

	footer := decodeIndexFooter(data[len(data)-IndexFooterSize:])
	require.EqualValues(t, 2, footer.count)

	dir := data[len(data)-IndexFooterSize-dirBytes : len(data)-IndexFooterSize]
	e0 := decodeCFIndexEntry(dir[0:CFIndexEntrySize])
	e1 := decodeCFIndexEntry(dir[CFIndexEntrySize : 2*CFIndexEntrySize])
	require.EqualValues(t, 1, e0.cfID)
	require.EqualValues(t, 0, e0.offset)
	require.EqualValues(t, 1, e0.count)
	require.EqualValues(t, 7, e1.cfID)
	require.EqualValues(t, EntrySize, e1.offset)
	require.EqualValues(t, 2, e1.count)

	// The footer's CRC chains over the directory entries followed by the
	// count field, matching WriteFooter's own accumulation.
	var c crc.CRC
	c = c.Update(dir)
	var countBuf [4]byte
	countBuf[0] = 2
	c = c.Update(countBuf[:])
	require.EqualValues(t, uint32(c), footer.crc32)
}

func TestIndexWriterRejectsCFAfterFooter(t *testing.T) {
	af := &bufAppender{}
	iw := NewIndexWriter(af)
	require.NoError(t, iw.WriteFooter())
	require.Error(t, iw.WriteCF(1, nil))
}
