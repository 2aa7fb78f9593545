// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"container/list"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/petermattis/walblob/vfs"
)

// Blob is a reconstructed, checksum-verified payload held by a Cache. It
// is the unit of ownership exchanged between GetBlob and its caller: the
// Cache owns the backing array, and a lookup or insertion yields a borrow
// that must eventually be released.
type Blob struct {
	buf []byte
}

// Bytes returns the blob's contents. The returned slice is only valid
// until the borrowing CacheHandle is released.
func (b *Blob) Bytes() []byte { return b.buf }

// Charge is the accounting weight of the blob for cache capacity purposes:
// the payload bytes plus a fixed per-entry overhead, mirroring the
// original's "sizeof(Blob) + blob->DataSize()".
func (b *Blob) Charge() int { return blobOverhead + len(b.buf) }

const blobOverhead = 64

// CacheHandle is an opaque borrow on a cached Blob, returned by Lookup and
// Insert. It must be passed to Release exactly once when the caller is
// done with the Blob it names.
type CacheHandle interface{}

// Cache is the capability GetBlob uses to avoid re-reading and
// re-verifying a blob it has already reconstructed (component G). It is
// deliberately minimal: no request coalescing is required or provided —
// concurrent Lookup misses for the same key may both proceed to Insert,
// and the last Insert wins (SPEC_FULL.md §5).
type Cache interface {
	// Lookup returns a borrowed handle on the Blob stored under key, and
	// true, or (nil, false) on a miss. A hit must eventually be released.
	Lookup(key []byte) (CacheHandle, bool)
	// Insert stores value under key and returns a borrowed handle on it.
	// If key is already present, Insert still succeeds; readers already
	// holding a handle on the prior entry keep a valid (if now evicted)
	// Blob until they release it.
	Insert(key []byte, value *Blob) CacheHandle
	// Release relinquishes a handle returned by Lookup or Insert.
	Release(h CacheHandle)
	// Value returns the Blob a handle refers to.
	Value(h CacheHandle) *Blob
}

// GenerateCacheUniqueID builds a cache key for handle by prefixing its
// encoded bytes with the file's unique ID (capped at
// vfs.MaxCacheKeyPrefixSize), so handles from different log files never
// collide even if their byte patterns coincide.
func GenerateCacheUniqueID(f vfs.UniqueIDer, handle Handle) []byte {
	var prefix [vfs.MaxCacheKeyPrefixSize]byte
	n := f.UniqueID(prefix[:])
	key := make([]byte, 0, n+HandleSize)
	key = append(key, prefix[:n]...)
	key = append(key, handle.Bytes()...)
	return key
}

// shardedLRUCache is a capacity-bounded, sharded least-recently-used Cache.
// Sharding by the low bits of a key's xxhash lets concurrent Lookup and
// Insert calls on distinct keys proceed without contending on one mutex,
// mirroring the spirit (if not the clock-PRO machinery) of the engine's
// block cache.
type shardedLRUCache struct {
	shards []cacheShard
	mask   uint64
}

type cacheShard struct {
	mu       sync.Mutex
	ll       *list.List // of *cacheEntry, most-recently-used at the front
	index    map[string]*list.Element
	capacity int
	used     int
}

type cacheEntry struct {
	key    string
	blob   *Blob
	refs   int
	marked bool // true once evicted from the index; kept alive by refs
}

// NewCache returns a Cache that holds up to capacity bytes (by Blob
// charge) across numShards independent LRU shards. numShards is rounded up
// to the next power of two.
func NewCache(capacity int, numShards int) Cache {
	if numShards < 1 {
		numShards = 1
	}
	n := 1
	for n < numShards {
		n <<= 1
	}
	perShard := capacity / n
	c := &shardedLRUCache{
		shards: make([]cacheShard, n),
		mask:   uint64(n - 1),
	}
	for i := range c.shards {
		c.shards[i].ll = list.New()
		c.shards[i].index = make(map[string]*list.Element)
		c.shards[i].capacity = perShard
	}
	return c
}

func (c *shardedLRUCache) shardFor(key []byte) *cacheShard {
	h := xxhash.Sum64(key)
	return &c.shards[h&c.mask]
}

func (c *shardedLRUCache) Lookup(key []byte) (CacheHandle, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.index[string(key)]
	if !ok {
		return nil, false
	}
	s.ll.MoveToFront(elem)
	e := elem.Value.(*cacheEntry)
	e.refs++
	return e, true
}

func (c *shardedLRUCache) Insert(key []byte, value *Blob) CacheHandle {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.index[string(key)]; ok {
		s.ll.Remove(old)
		delete(s.index, string(key))
		oe := old.Value.(*cacheEntry)
		oe.marked = true
		s.used -= oe.blob.Charge()
		if oe.refs == 0 {
			// no outstanding borrows; nothing else to do, it's unlinked.
		}
	}

	e := &cacheEntry{key: string(key), blob: value, refs: 1}
	elem := s.ll.PushFront(e)
	s.index[e.key] = elem
	s.used += value.Charge()

	for s.used > s.capacity && s.ll.Len() > 0 {
		back := s.ll.Back()
		be := back.Value.(*cacheEntry)
		if be == e {
			break
		}
		s.ll.Remove(back)
		delete(s.index, be.key)
		be.marked = true
		s.used -= be.blob.Charge()
	}

	return e
}

func (c *shardedLRUCache) Release(h CacheHandle) {
	e := h.(*cacheEntry)
	s := c.shardForKey(e.key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
}

func (c *shardedLRUCache) Value(h CacheHandle) *Blob {
	return h.(*cacheEntry).blob
}

func (c *shardedLRUCache) shardForKey(key string) *cacheShard {
	return c.shardFor([]byte(key))
}
