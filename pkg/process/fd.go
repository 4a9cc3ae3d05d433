package process

import (
	"errors"

	"kernos/pkg/vfs"
)

// Descriptor table layout.
const (
	// MaxFD is the number of slots in a descriptor table.
	MaxFD = 128 + 3
	// StdinFD reads from the console.
	StdinFD = 0
	// StdoutFD writes to the console.
	StdoutFD = 1
	// FirstFD is the lowest descriptor handed out by Install. Slot 2 is
	// reserved and never used.
	FirstFD = 3
)

// Descriptor table errors.
var (
	ErrBadDescriptor = errors.New("bad file descriptor")
	ErrTableFull     = errors.New("file descriptor table full")
)

// FileTable maps descriptors to open files. It does no locking of its own:
// every caller holds the kernel's file-system lock.
type FileTable struct {
	files [MaxFD]vfs.File
}

// ValidFD reports whether fd is inside the table.
func ValidFD(fd int) bool {
	return fd >= 0 && fd < MaxFD
}

// Install stores f in the lowest free slot at or above FirstFD.
func (ft *FileTable) Install(f vfs.File) (int, error) {
	for fd := FirstFD; fd < MaxFD; fd++ {
		if ft.files[fd] == nil {
			ft.files[fd] = f
			return fd, nil
		}
	}
	return -1, ErrTableFull
}

// Get returns the file stored at fd.
func (ft *FileTable) Get(fd int) (vfs.File, error) {
	if !ValidFD(fd) || ft.files[fd] == nil {
		return nil, ErrBadDescriptor
	}
	return ft.files[fd], nil
}

// Remove clears fd and returns the file that was stored there. The caller
// closes it.
func (ft *FileTable) Remove(fd int) (vfs.File, error) {
	f, err := ft.Get(fd)
	if err != nil {
		return nil, err
	}
	ft.files[fd] = nil
	return f, nil
}

// CloseAll closes and clears every populated slot and returns how many
// files were closed.
func (ft *FileTable) CloseAll() int {
	closed := 0
	for fd, f := range ft.files {
		if f == nil {
			continue
		}
		_ = f.Close()
		ft.files[fd] = nil
		closed++
	}
	return closed
}

// Len returns the number of open descriptors.
func (ft *FileTable) Len() int {
	n := 0
	for _, f := range ft.files {
		if f != nil {
			n++
		}
	}
	return n
}
