package process

import (
	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
)

// Loader turns an open executable into a runnable image. Load maps the
// image's segments into pd and returns the program's entry point. The file
// stays open and owned by the caller.
type Loader interface {
	Load(f vfs.File, pd usermem.PageDirectory) (Entry, error)
}

// Console is the output device the exit and load-failure lines go to.
type Console interface {
	WriteBytes(buf []byte)
}
