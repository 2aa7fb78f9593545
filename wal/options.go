// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"github.com/petermattis/walblob/internal/base"
	"github.com/prometheus/client_golang/prometheus"
)

// ReaderOptions configures a BlobReader.
type ReaderOptions struct {
	// Recycle selects the recyclable header size when computing physical
	// lengths. The append path (record.Writer) never emits recyclable
	// chunks, but a reader may still be pointed at a log file that was
	// written with recycling enabled by some other producer, so the
	// format and its header-size arithmetic are retained here.
	Recycle bool

	// Cache backs GetBlob's memoization of reconstructed payloads. If
	// nil, a private 16-shard cache of defaultCacheCapacity bytes is used.
	Cache Cache

	// Logger receives a notice whenever GetBlob detects corruption. If
	// nil, base.DefaultLogger is used.
	Logger base.Logger

	// Metrics, all optional.
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	BlobReadLatency prometheus.Histogram
}

const defaultCacheCapacity = 8 << 20 // 8 MiB

func (o ReaderOptions) cacheOrDefault() Cache {
	if o.Cache != nil {
		return o.Cache
	}
	return NewCache(defaultCacheCapacity, 16)
}

func (o ReaderOptions) loggerOrDefault() base.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return base.DefaultLogger{}
}
