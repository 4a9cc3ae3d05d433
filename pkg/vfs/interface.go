package vfs

import "io"

// FileSystem is the interface the kernel uses to create, remove and open
// files by name.
type FileSystem interface {
	// Create creates a file called name holding size zero bytes. It fails
	// if the name is invalid or already taken.
	Create(name string, size int64) error

	// Remove deletes name from the namespace. Files that are already open
	// stay readable and writable until their last handle is closed.
	Remove(name string) error

	// Open returns a new handle positioned at offset zero.
	Open(name string) (File, error)
}

// File is an open file handle.
type File interface {
	// Read reads from the current position and advances it.
	// It returns 0, io.EOF at end of file.
	io.Reader

	// Write writes at the current position and advances it. Writes stop at
	// end of file. A write-denied file accepts no bytes.
	io.Writer

	// Seek moves the position to pos bytes from the start of the file.
	// Positions past end of file are allowed; reads there return io.EOF.
	Seek(pos int64)

	// Tell returns the current position.
	Tell() int64

	// Length returns the size of the file in bytes.
	Length() int64

	// DenyWrite blocks writes through every handle of the underlying file
	// until the matching AllowWrite. Calls nest.
	DenyWrite()

	// AllowWrite undoes one DenyWrite made through this handle.
	AllowWrite()

	// Close releases the handle. A closed handle rejects further I/O.
	Close() error
}
