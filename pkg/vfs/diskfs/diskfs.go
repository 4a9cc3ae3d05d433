// Package diskfs provides a disk-based filesystem implementation.
// It stores each file of the flat namespace as a regular file in one host
// directory.
package diskfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	vfs "kernos/pkg/vfs"
)

// ErrFileNotFound is returned when a file is not found.
var ErrFileNotFound = errors.New("diskfs: file not found")

// ErrFileExists is returned when a file already exists.
var ErrFileExists = errors.New("diskfs: file already exists")

// FS represents a disk-based filesystem.
type FS struct {
	root string

	mu     sync.Mutex
	guards map[string]*vfs.WriteGuard
}

// New creates a new disk-based filesystem rooted at the given directory.
func New(root string) *FS {
	return &FS{
		root:   filepath.Clean(root),
		guards: make(map[string]*vfs.WriteGuard),
	}
}

// Create implements vfs.FileSystem.Create.
func (fs *FS) Create(name string, size int64) error {
	if err := vfs.ValidateName(name); err != nil {
		return err
	}
	file, err := os.OpenFile(fs.fullPath(name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrFileExists
		}
		return err
	}
	defer file.Close()
	return file.Truncate(size)
}

// Remove implements vfs.FileSystem.Remove.
func (fs *FS) Remove(name string) error {
	if err := vfs.ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(fs.fullPath(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrFileNotFound
		}
		return err
	}
	return nil
}

// Open implements vfs.FileSystem.Open.
func (fs *FS) Open(name string) (vfs.File, error) {
	if err := vfs.ValidateName(name); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(fs.fullPath(name), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return &diskFile{file: file, guard: fs.guard(name)}, nil
}

// guard returns the shared write guard for name.
func (fs *FS) guard(name string) *vfs.WriteGuard {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	g, ok := fs.guards[name]
	if !ok {
		g = &vfs.WriteGuard{}
		fs.guards[name] = g
	}
	return g
}

// fullPath converts a file name to a host path.
func (fs *FS) fullPath(name string) string {
	return filepath.Join(fs.root, name)
}

// diskFile wraps an os.File to implement vfs.File.
type diskFile struct {
	mu     sync.Mutex
	file   *os.File
	guard  *vfs.WriteGuard
	pos    int64
	denied bool
	closed bool
}

func (f *diskFile) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	if len(b) == 0 {
		return 0, nil
	}
	n, err := f.file.ReadAt(b, f.pos)
	f.pos += int64(n)
	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}
	return n, err
}

func (f *diskFile) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, vfs.ErrClosedFile
	}
	if f.guard.Denied() {
		return 0, vfs.ErrWriteDenied
	}
	length, err := f.length()
	if err != nil {
		return 0, err
	}
	if f.pos >= length {
		return 0, nil
	}
	if room := length - f.pos; int64(len(b)) > room {
		b = b[:room]
	}
	n, err := f.file.WriteAt(b, f.pos)
	f.pos += int64(n)
	return n, err
}

func (f *diskFile) Seek(pos int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pos < 0 {
		pos = 0
	}
	f.pos = pos
}

func (f *diskFile) Tell() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *diskFile) Length() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, err := f.length()
	if err != nil {
		return 0
	}
	return n
}

func (f *diskFile) length() (int64, error) {
	info, err := f.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (f *diskFile) DenyWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.denied || f.closed {
		return
	}
	f.denied = true
	f.guard.Deny()
}

func (f *diskFile) AllowWrite() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.denied {
		return
	}
	f.denied = false
	f.guard.Allow()
}

func (f *diskFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return vfs.ErrClosedFile
	}
	f.closed = true
	if f.denied {
		f.denied = false
		f.guard.Allow()
	}
	return f.file.Close()
}
