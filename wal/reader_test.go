// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"bytes"
	"testing"

	"github.com/petermattis/walblob/internal/crc"
	"github.com/petermattis/walblob/record"
	"github.com/petermattis/walblob/vfs"
	"github.com/stretchr/testify/require"
)

// fileAppender bridges a vfs.File (io.Writer + Sync) to the Append/Flush
// shape record.Writer and IndexWriter consume.
type fileAppender struct{ f vfs.File }

func (a fileAppender) Append(p []byte) error {
	_, err := a.f.Write(p)
	return err
}

func (a fileAppender) Flush() error { return a.f.Sync() }

// handleForPayload computes the Handle a Writer would have produced for
// payload written at payloadOffset, independent of GetBlob: the head/tail
// CRCs are taken directly from the corresponding slices of the original
// (uncorrupted) payload, since those bytes are never touched by fragment
// headers.
func handleForPayload(payloadOffset int64, payload []byte) Handle {
	physical := record.PhysicalLength(int64(len(payload)), payloadOffset, record.LegacyHeaderSize)
	h := Handle{Offset: uint64(payloadOffset), Length: uint32(len(payload))}
	if physical == int64(len(payload)) {
		h.HeadCRC = crc.CRC16C(0, payload)
		return h
	}
	headSize := record.BlockSize - payloadOffset%record.BlockSize
	perBlock := int64(record.BlockSize - record.LegacyHeaderSize)
	tailSize := (int64(len(payload)) - headSize) % perBlock
	h.HeadCRC = crc.CRC16C(0, payload[:headSize])
	if tailSize != 0 {
		h.TailCRC = crc.CRC16C(0, payload[int64(len(payload))-tailSize:])
	}
	return h
}

func newReader(t *testing.T, fs *vfs.MemFS, name string) *BlobReader {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	return NewBlobReader(f, 1, "", ReaderOptions{})
}

func TestGetBlobZeroLengthRecord(t *testing.T) {
	fs := vfs.NewMem()
	f, err := fs.Create("000001.log")
	require.NoError(t, err)
	w := record.NewWriter(fileAppender{f}, record.WriterOptions{})
	var wh record.WriterHandle
	require.NoError(t, w.AddRecord(nil, 1, &wh))

	off, ok := wh.Offset()
	require.True(t, ok)
	require.EqualValues(t, record.LegacyHeaderSize, off)

	r := newReader(t, fs, "000001.log")
	h := handleForPayload(off, nil)
	ch, err := r.GetBlob(h)
	require.NoError(t, err)
	defer r.Release(ch)
	require.Empty(t, r.Value(ch))
}

func TestGetBlobSingleBlockRecord(t *testing.T) {
	fs := vfs.NewMem()
	f, err := fs.Create("000001.log")
	require.NoError(t, err)
	w := record.NewWriter(fileAppender{f}, record.WriterOptions{})

	payload := bytes.Repeat([]byte{'P'}, 100)
	var wh record.WriterHandle
	require.NoError(t, w.AddRecord(payload, 1, &wh))
	off, _ := wh.Offset()

	r := newReader(t, fs, "000001.log")
	h := handleForPayload(off, payload)
	require.EqualValues(t, 0, h.TailCRC)

	ch, err := r.GetBlob(h)
	require.NoError(t, err)
	defer r.Release(ch)
	require.Equal(t, payload, r.Value(ch))
}

// TestGetBlobTwoBlockRecord reproduces SPEC_FULL.md §8 scenario 3: a
// filler record is sized so only 6 bytes remain in the current block
// (less than the 7-byte header), forcing the writer to pad and advance
// before the payload record, which then spans exactly two blocks.
func TestGetBlobTwoBlockRecord(t *testing.T) {
	fs := vfs.NewMem()
	f, err := fs.Create("000001.log")
	require.NoError(t, err)
	w := record.NewWriter(fileAppender{f}, record.WriterOptions{})

	filler := bytes.Repeat([]byte{'x'}, int(record.BlockSize-record.LegacyHeaderSize-6))
	require.NoError(t, w.AddRecord(filler, 1, nil))
	require.EqualValues(t, record.BlockSize-6, w.Size())

	payload := bytes.Repeat([]byte{'Q'}, 32761+42)
	var wh record.WriterHandle
	require.NoError(t, w.AddRecord(payload, 1, &wh))
	off, _ := wh.Offset()
	require.EqualValues(t, record.BlockSize+record.LegacyHeaderSize, off)

	r := newReader(t, fs, "000001.log")
	h := handleForPayload(off, payload)

	physical := record.PhysicalLength(int64(len(payload)), off, record.LegacyHeaderSize)
	require.EqualValues(t, 32810, physical)

	ch, err := r.GetBlob(h)
	require.NoError(t, err)
	defer r.Release(ch)
	require.Equal(t, payload, r.Value(ch))
}

// TestGetBlobFourBlockRecordAndCorruption reproduces scenarios 4 and 5: a
// record of 3*(BlockSize-7)+5 bytes written at offset 7, which spans four
// blocks (FIRST, two MIDDLEs, LAST), reconstructs correctly, and flipping
// one on-disk payload byte turns the same read into a checksum error.
func TestGetBlobFourBlockRecordAndCorruption(t *testing.T) {
	fs := vfs.NewMem()
	f, err := fs.Create("000001.log")
	require.NoError(t, err)
	w := record.NewWriter(fileAppender{f}, record.WriterOptions{})

	payloadLen := 3*(record.BlockSize-record.LegacyHeaderSize) + 5
	payload := bytes.Repeat([]byte{'R'}, payloadLen)
	var wh record.WriterHandle
	require.NoError(t, w.AddRecord(payload, 1, &wh))
	off, _ := wh.Offset()

	h := handleForPayload(off, payload)

	r := newReader(t, fs, "000001.log")
	ch, err := r.GetBlob(h)
	require.NoError(t, err)
	require.Equal(t, payload, r.Value(ch))
	r.Release(ch)

	// Flip a byte inside the on-disk payload of the first fragment and
	// re-read through a fresh reader (and so a fresh cache), expecting a
	// checksum error.
	raw, err := fs.Open("000001.log")
	require.NoError(t, err)
	info, err := raw.Stat()
	require.NoError(t, err)
	full := make([]byte, info.Size())
	_, err = raw.ReadAt(full, 0)
	require.NoError(t, err)
	full[off+10] ^= 0xff

	require.NoError(t, fs.Remove("000001.log"))
	nf, err := fs.Create("000001.log")
	require.NoError(t, err)
	_, err = nf.Write(full)
	require.NoError(t, err)

	r2 := newReader(t, fs, "000001.log")
	_, err = r2.GetBlob(h)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorruption)
}
