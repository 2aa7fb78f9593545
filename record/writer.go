// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package record

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/petermattis/walblob/internal/base"
	"github.com/prometheus/client_golang/prometheus"
)

// AppendableFile is the append-only file capability the Writer consumes.
// The engine's file-system abstraction supplies the concrete
// implementation; the Writer only ever appends and (optionally) flushes.
type AppendableFile interface {
	Append(p []byte) error
	Flush() error
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// LogNumber is embedded in recyclable chunk headers. Unused unless
	// Recycle is set.
	LogNumber uint32
	// Recycle selects the recyclable header format for size accounting.
	// The append path forbids actually emitting recyclable chunks (see
	// SPEC_FULL.md §1 Non-goals); attempting to construct a Writer with
	// Recycle set panics, the way the RocksDB source asserts
	// recycle_log_files_ == 0 in AddRecord. The flag still exists so a
	// Writer and a reader opened against the same options agree on
	// HeaderSize when the reader is pointed at a legacy recyclable file.
	Recycle bool
	// ManualFlush suppresses the per-record flush; the caller is
	// responsible for calling Flush (or relying on Close).
	ManualFlush bool

	// Logger receives a notice the first time a persistent append error
	// puts the Writer into its permanently-failed state. If nil,
	// base.DefaultLogger is used.
	Logger base.Logger

	// Metrics, all optional. Ground in pebble's wal.Options.FsyncLatency.
	RecordsWritten prometheus.Counter
	BytesWritten   prometheus.Counter
	FlushLatency   prometheus.Histogram
}

func (o WriterOptions) loggerOrDefault() base.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return base.DefaultLogger{}
}

// WriterHandle receives the absolute file offset of the first payload byte
// of a batch, computed once, the first time AddRecord is called with a
// non-nil handle whose PayloadOffset is still unset. This lets the caller
// locate the batch later without scanning the log.
type WriterHandle struct {
	// PayloadOffset is valid once set (Offset reports whether it is).
	PayloadOffset int64
	offsetSet     bool
}

// Offset returns the recorded payload offset and whether it has been set.
func (h *WriterHandle) Offset() (int64, bool) {
	if h == nil {
		return 0, false
	}
	return h.PayloadOffset, h.offsetSet
}

// Writer fragments records across fixed BlockSize blocks and appends the
// resulting headered chunks to a single append-only log file (component B).
// A Writer has a single owner; it is not safe for concurrent use.
type Writer struct {
	file AppendableFile
	opts WriterOptions

	headerSize int
	// blockOffset is the write cursor within the current block, always in
	// [0, BlockSize).
	blockOffset int64
	// blockCounts is the number of fully-written blocks preceding the
	// current one.
	blockCounts int64
	numEntries  int64

	err error
}

// NewWriter returns a Writer that appends fragmented records to file,
// starting at the beginning of the (assumed-empty) file.
func NewWriter(file AppendableFile, opts WriterOptions) *Writer {
	if opts.Recycle {
		panic("walblob/record: log file recycling is disabled at the append path")
	}
	return &Writer{
		file:       file,
		opts:       opts,
		headerSize: HeaderSize(false),
	}
}

// Size returns the current logical size of the file: blockCounts*BlockSize
// + blockOffset. This must equal the underlying file's size after every
// completed AddRecord (the "block alignment" invariant, SPEC_FULL.md §8).
func (w *Writer) Size() int64 {
	return w.blockCounts*BlockSize + w.blockOffset
}

// GetFirstEntryPhysicalOffset computes the absolute file offset of the
// first payload byte of a record about to be appended when the file is
// currently fileSize bytes and avail bytes remain in the current block. If
// avail is too small for a header, the record will begin in the next block
// instead.
func GetFirstEntryPhysicalOffset(fileSize int64, headerSize int, avail int64) int64 {
	if avail >= int64(headerSize) {
		return fileSize + int64(headerSize)
	}
	// The current block doesn't have room for a header; the writer pads it
	// out and starts the record at the beginning of the next block.
	nextBlockStart := fileSize + avail
	return nextBlockStart + int64(headerSize)
}

// AddRecord fragments payload across as many physical chunks as necessary
// and appends them to the file. batchEntryCount is added to the running
// entry count purely for bookkeeping (it does not affect fragmentation). If
// handle is non-nil and its payload offset is unset, AddRecord records the
// absolute offset of payload's first byte before writing the first chunk
// (any block-trailer padding that precedes that chunk is written first).
//
// A zero-length payload still emits a single FULL chunk carrying no bytes,
// so that an empty batch is still representable by a handle.
func (w *Writer) AddRecord(payload []byte, batchEntryCount int, handle *WriterHandle) error {
	if w.err != nil {
		return w.err
	}

	headerSize := w.headerSize
	var buf [RecyclableHeaderSize]byte

	left := len(payload)
	begin := true
	for first := true; first || left > 0; first = false {
		leftover := BlockSize - w.blockOffset
		if leftover < int64(headerSize) {
			if leftover > 0 {
				if err := w.file.Append(make([]byte, leftover)); err != nil {
					w.err = errors.Wrap(err, "walblob/record: padding block trailer")
					w.opts.loggerOrDefault().Infof("record writer failed permanently: %v", w.err)
					return w.err
				}
			}
			w.blockOffset = 0
			w.blockCounts++
			leftover = BlockSize
		}

		avail := leftover - int64(headerSize)
		fragLen := int64(left)
		if fragLen > avail {
			fragLen = avail
		}
		end := int64(left) == fragLen

		if handle != nil && !handle.offsetSet {
			handle.PayloadOffset = GetFirstEntryPhysicalOffset(w.Size(), headerSize, leftover)
			handle.offsetSet = true
			if handle.PayloadOffset%BlockSize < int64(headerSize) {
				return errors.AssertionFailedf(
					"walblob/record: computed payload offset %d violates header_size invariant", handle.PayloadOffset)
			}
		}

		var position ChunkPosition
		switch {
		case begin && end:
			position = FullChunkPosition
		case begin:
			position = FirstChunkPosition
		case end:
			position = LastChunkPosition
		default:
			position = MiddleChunkPosition
		}

		fragment := payload[len(payload)-left : len(payload)-left+int(fragLen)]
		n := EncodeHeader(buf[:], position, false, w.opts.LogNumber, fragment)
		if err := w.file.Append(buf[:n]); err != nil {
			w.err = errors.Wrap(err, "walblob/record: appending chunk header")
			w.opts.loggerOrDefault().Infof("record writer failed permanently: %v", w.err)
			return w.err
		}
		if len(fragment) > 0 {
			if err := w.file.Append(fragment); err != nil {
				w.err = errors.Wrap(err, "walblob/record: appending chunk payload")
				w.opts.loggerOrDefault().Infof("record writer failed permanently: %v", w.err)
				return w.err
			}
		}
		if !w.opts.ManualFlush {
			start := time.Now()
			err := w.file.Flush()
			if w.opts.FlushLatency != nil {
				w.opts.FlushLatency.Observe(time.Since(start).Seconds())
			}
			if err != nil {
				w.err = errors.Wrap(err, "walblob/record: flushing chunk")
				w.opts.loggerOrDefault().Infof("record writer failed permanently: %v", w.err)
				return w.err
			}
		}
		if w.opts.RecordsWritten != nil {
			w.opts.RecordsWritten.Inc()
		}
		if w.opts.BytesWritten != nil {
			w.opts.BytesWritten.Add(float64(n) + float64(len(fragment)))
		}

		w.blockOffset += int64(n) + fragLen
		left -= int(fragLen)
		begin = false
	}

	w.numEntries += int64(batchEntryCount)
	return nil
}

// Flush flushes the underlying file. Safe to call even when ManualFlush is
// false, since every record has already been flushed.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	start := time.Now()
	err := w.file.Flush()
	if w.opts.FlushLatency != nil {
		w.opts.FlushLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		w.err = errors.Wrap(err, "walblob/record: flush")
		return w.err
	}
	return nil
}

// Close flushes the writer a final time. The writer's append file is
// released on drop by the caller; Close only guarantees the final flush
// the spec requires of a dropped Writer.
func (w *Writer) Close() error {
	return w.Flush()
}

// NumEntries returns the cumulative batchEntryCount passed to AddRecord.
func (w *Writer) NumEntries() int64 { return w.numEntries }
