// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package wal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheLookupMissThenHit(t *testing.T) {
	c := NewCache(1<<20, 4)
	key := []byte("some-key")

	_, ok := c.Lookup(key)
	require.False(t, ok)

	h := c.Insert(key, &Blob{buf: []byte("hello")})
	require.Equal(t, []byte("hello"), c.Value(h).Bytes())
	c.Release(h)

	h2, ok := c.Lookup(key)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), c.Value(h2).Bytes())
	c.Release(h2)
}

func TestCacheEvictsUnderCapacity(t *testing.T) {
	// A tiny, single-shard cache: each blob plus overhead exceeds the
	// capacity needed to hold more than a couple of entries at once, so
	// inserting enough keys evicts the earliest ones.
	c := NewCache(blobOverhead*3, 1)
	var keys [][]byte
	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("key-%02d", i))
		keys = append(keys, key)
		h := c.Insert(key, &Blob{buf: []byte("x")})
		c.Release(h)
	}

	_, hitFirst := c.Lookup(keys[0])
	require.False(t, hitFirst, "oldest key should have been evicted")

	h, hitLast := c.Lookup(keys[len(keys)-1])
	require.True(t, hitLast, "most recently inserted key should still be cached")
	c.Release(h)
}

func TestGenerateCacheUniqueIDPrefixesByFile(t *testing.T) {
	h := Handle{Offset: 1, Length: 2}
	idA := GenerateCacheUniqueID(constUniqueIDer{1}, h)
	idB := GenerateCacheUniqueID(constUniqueIDer{2}, h)
	require.NotEqual(t, idA, idB)
}

type constUniqueIDer struct{ id byte }

func (c constUniqueIDer) UniqueID(buf []byte) int {
	buf[0] = c.id
	return 1
}
