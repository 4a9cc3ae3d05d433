package vfs

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ErrClosedFile is returned when operations are performed on a closed file.
var ErrClosedFile = errors.New("vfs: file is closed")

// ErrWriteDenied is returned when writing to a file whose writes are denied.
var ErrWriteDenied = errors.New("vfs: write denied")

// ErrInvalidName is returned for empty names or names containing a slash.
var ErrInvalidName = errors.New("vfs: invalid file name")

// ErrNameTooLong is returned for names longer than NameMax.
var ErrNameTooLong = errors.New("vfs: file name too long")

// NameMax is the longest file name a FileSystem accepts.
const NameMax = 14

// ValidateName checks that name can be used in the flat namespace.
func ValidateName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if len(name) > NameMax {
		return fmt.Errorf("%w: %q", ErrNameTooLong, name)
	}
	return nil
}

// ReadAll reads f from its start to end of file and leaves the position
// at end of file.
func ReadAll(f File) ([]byte, error) {
	f.Seek(0)
	data := make([]byte, 0, f.Length())
	buf := make([]byte, 512)
	for {
		n, err := f.Read(buf)
		data = append(data, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return data, nil
		}
	}
}

// WriteGuard counts outstanding DenyWrite calls for one underlying file.
// Backends embed it in their per-file state.
type WriteGuard struct {
	mu     sync.Mutex
	denied int
}

// Deny adds one denial.
func (g *WriteGuard) Deny() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.denied++
}

// Allow removes one denial.
func (g *WriteGuard) Allow() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.denied > 0 {
		g.denied--
	}
}

// Denied reports whether any denial is outstanding.
func (g *WriteGuard) Denied() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.denied > 0
}
