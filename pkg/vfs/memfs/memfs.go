// Package memfs provides an in-memory filesystem implementation.
// It is useful for ephemeral storage, testing, or as a temporary cache.
package memfs

import (
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	vfs "kernos/pkg/vfs"
)

// ErrFileNotFound is returned when a file is not found.
var ErrFileNotFound = errors.New("memfs: file not found")

// ErrFileExists is returned when a file already exists.
var ErrFileExists = errors.New("memfs: file already exists")

// ErrInvalidSize is returned when a file is created with a negative size.
var ErrInvalidSize = errors.New("memfs: invalid file size")

// memNode holds the contents of one file. Open handles keep a node alive
// after it has been removed from the namespace.
type memNode struct {
	mu    sync.RWMutex
	data  []byte
	guard vfs.WriteGuard
	mtime time.Time
	opens int
}

// newMemNode creates a zero-filled node.
func newMemNode(size int64) *memNode {
	return &memNode{
		data:  make([]byte, size),
		mtime: time.Now(),
	}
}

// FS represents an in-memory filesystem.
type FS struct {
	mu    sync.RWMutex
	files map[string]*memNode
}

// New creates a new in-memory filesystem.
func New() *FS {
	return &FS{
		files: make(map[string]*memNode),
	}
}

// Create implements vfs.FileSystem.Create.
func (fs *FS) Create(name string, size int64) error {
	if err := vfs.ValidateName(name); err != nil {
		return err
	}
	if size < 0 {
		return ErrInvalidSize
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.files[name]; ok {
		return ErrFileExists
	}
	fs.files[name] = newMemNode(size)
	return nil
}

// Remove implements vfs.FileSystem.Remove.
func (fs *FS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.files[name]; !ok {
		return ErrFileNotFound
	}
	delete(fs.files, name)
	return nil
}

// Open implements vfs.FileSystem.Open.
func (fs *FS) Open(name string) (vfs.File, error) {
	fs.mu.RLock()
	node, ok := fs.files[name]
	fs.mu.RUnlock()

	if !ok {
		return nil, ErrFileNotFound
	}

	node.mu.Lock()
	node.opens++
	node.mu.Unlock()

	return &memFile{node: node, name: name}, nil
}

// WriteFile creates name holding exactly data. It is a convenience for
// seeding a filesystem before boot.
func (fs *FS) WriteFile(name string, data []byte) error {
	if err := fs.Create(name, int64(len(data))); err != nil {
		return err
	}
	fs.mu.RLock()
	node := fs.files[name]
	fs.mu.RUnlock()

	node.mu.Lock()
	copy(node.data, data)
	node.mu.Unlock()
	return nil
}

// ReadFile returns a copy of the contents of name.
func (fs *FS) ReadFile(name string) ([]byte, error) {
	fs.mu.RLock()
	node, ok := fs.files[name]
	fs.mu.RUnlock()

	if !ok {
		return nil, ErrFileNotFound
	}

	node.mu.RLock()
	defer node.mu.RUnlock()
	return append([]byte(nil), node.data...), nil
}

// Names returns the names of all files in sorted order.
func (fs *FS) Names() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	names := make([]string, 0, len(fs.files))
	for name := range fs.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenCount returns the number of open handles on name.
func (fs *FS) OpenCount(name string) int {
	fs.mu.RLock()
	node, ok := fs.files[name]
	fs.mu.RUnlock()

	if !ok {
		return 0
	}
	node.mu.RLock()
	defer node.mu.RUnlock()
	return node.opens
}

// memFile is one open handle on a memNode.
type memFile struct {
	mu     sync.Mutex
	node   *memNode
	name   string
	pos    int64
	denied bool
	closed bool
}

// Read implements io.Reader.
func (f *memFile) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	if len(b) == 0 {
		return 0, nil
	}

	f.node.mu.RLock()
	defer f.node.mu.RUnlock()

	if f.pos >= int64(len(f.node.data)) {
		return 0, io.EOF
	}
	n := copy(b, f.node.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

// Write implements io.Writer.
func (f *memFile) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	if f.node.guard.Denied() {
		return 0, vfs.ErrWriteDenied
	}

	f.node.mu.Lock()
	defer f.node.mu.Unlock()

	if f.pos >= int64(len(f.node.data)) {
		return 0, nil
	}
	n := copy(f.node.data[f.pos:], b)
	f.pos += int64(n)
	f.node.mtime = time.Now()
	return n, nil
}

// Seek implements vfs.File.Seek.
func (f *memFile) Seek(pos int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	f.pos = pos
}

// Tell implements vfs.File.Tell.
func (f *memFile) Tell() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Length implements vfs.File.Length.
func (f *memFile) Length() int64 {
	f.node.mu.RLock()
	defer f.node.mu.RUnlock()
	return int64(len(f.node.data))
}

// DenyWrite implements vfs.File.DenyWrite.
func (f *memFile) DenyWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied || f.closed {
		return
	}
	f.denied = true
	f.node.guard.Deny()
}

// AllowWrite implements vfs.File.AllowWrite.
func (f *memFile) AllowWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.denied {
		return
	}
	f.denied = false
	f.node.guard.Allow()
}

// Close implements vfs.File.Close.
func (f *memFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return vfs.ErrClosedFile
	}
	f.closed = true
	if f.denied {
		f.denied = false
		f.node.guard.Allow()
	}

	f.node.mu.Lock()
	f.node.opens--
	f.node.mu.Unlock()
	return nil
}
