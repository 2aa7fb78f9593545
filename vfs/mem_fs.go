// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package vfs

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// MemFS is an in-memory FS implementation, used by tests that need a
// file-system-shaped dependency without touching disk. It is a trimmed
// stand-in for pebble's vfs.MemFS: it supports exactly the operations this
// subsystem's Writer, BlobReader, and IndexWriter/CFIterator need.
type MemFS struct {
	mu     sync.Mutex
	files  map[string]*memNode
	nextID uint64
}

type memNode struct {
	mu   sync.Mutex
	data []byte
	id   uint64
}

// NewMem returns a new, empty MemFS.
func NewMem() *MemFS {
	return &MemFS{files: make(map[string]*memNode)}
}

func (fs *MemFS) clean(name string) string {
	return filepath.Clean(filepath.ToSlash(name))
}

// Create implements FS.
func (fs *MemFS) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextID++
	n := &memNode{id: fs.nextID}
	fs.files[fs.clean(name)] = n
	return &memFile{node: n}, nil
}

// Link implements FS.
func (fs *MemFS) Link(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.files[fs.clean(oldname)]
	if !ok {
		return os.ErrNotExist
	}
	fs.files[fs.clean(newname)] = n
	return nil
}

// Open implements FS.
func (fs *MemFS) Open(name string, opts ...OpenOption) (File, error) {
	fs.mu.Lock()
	n, ok := fs.files[fs.clean(name)]
	fs.mu.Unlock()
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	f := &memFile{node: n}
	for _, opt := range opts {
		opt.Apply(f)
	}
	return f, nil
}

// OpenDir implements FS.
func (fs *MemFS) OpenDir(name string) (File, error) {
	return fs.Open(name)
}

// Remove implements FS.
func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.files, fs.clean(name))
	return nil
}

// Rename implements FS.
func (fs *MemFS) Rename(oldname, newname string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.files[fs.clean(oldname)]
	if !ok {
		return os.ErrNotExist
	}
	fs.files[fs.clean(newname)] = n
	delete(fs.files, fs.clean(oldname))
	return nil
}

// MkdirAll implements FS.
func (fs *MemFS) MkdirAll(dir string, perm os.FileMode) error { return nil }

// Lock implements FS.
func (fs *MemFS) Lock(name string) (io.Closer, error) {
	return io.NopCloser(nil), nil
}

// List implements FS.
func (fs *MemFS) List(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dir = fs.clean(dir)
	var names []string
	for name := range fs.files {
		if filepath.Dir(name) == dir {
			names = append(names, filepath.Base(name))
		}
	}
	return names, nil
}

// Stat implements FS.
func (fs *MemFS) Stat(name string) (os.FileInfo, error) {
	fs.mu.Lock()
	n, ok := fs.files[fs.clean(name)]
	fs.mu.Unlock()
	if !ok {
		return nil, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return memFileInfo{name: filepath.Base(name), size: int64(len(n.data))}, nil
}

// PathBase implements FS.
func (fs *MemFS) PathBase(path string) string { return filepath.Base(path) }

// PathJoin implements FS.
func (fs *MemFS) PathJoin(elem ...string) string { return filepath.Join(elem...) }

// memFile is the File implementation backing a MemFS entry. Writes append;
// reads and ReadAt operate over the accumulated buffer. closed is tracked
// only so double-Close is harmless, matching os.File's own tolerance.
type memFile struct {
	node   *memNode
	rOff   int64
	closed atomic.Bool
}

func (f *memFile) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *memFile) Read(p []byte) (int, error) {
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	if f.rOff >= int64(len(f.node.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[f.rOff:])
	f.rOff += int64(n)
	return n, nil
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	if off >= int64(len(f.node.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.node.data[off:])
	if n < len(p) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	f.node.data = append(f.node.data, p...)
	return len(p), nil
}

func (f *memFile) Stat() (os.FileInfo, error) {
	f.node.mu.Lock()
	defer f.node.mu.Unlock()
	return memFileInfo{size: int64(len(f.node.data))}, nil
}

func (f *memFile) Sync() error { return nil }

// UniqueID implements vfs.UniqueIDer.
func (f *memFile) UniqueID(buf []byte) int {
	var scratch [8]byte
	id := f.node.id
	for i := 0; i < 8; i++ {
		scratch[i] = byte(id >> (8 * i))
	}
	return copy(buf, scratch[:])
}

// Append is a convenience used by record.AppendableFile callers wrapping a
// memFile directly in tests.
func (f *memFile) Append(p []byte) error {
	_, err := f.Write(p)
	return err
}

func (f *memFile) Flush() error { return nil }

type memFileInfo struct {
	name string
	size int64
}

func (fi memFileInfo) Name() string       { return fi.name }
func (fi memFileInfo) Size() int64        { return fi.size }
func (fi memFileInfo) Mode() os.FileMode  { return 0644 }
func (fi memFileInfo) ModTime() time.Time { return time.Time{} }
func (fi memFileInfo) IsDir() bool        { return false }
func (fi memFileInfo) Sys() interface{}   { return nil }
