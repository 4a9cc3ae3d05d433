package process

import (
	"sync"
	"sync/atomic"

	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
)

// NameMax is the longest display name kept for a process.
const NameMax = 15

// Process is the process control block. One exists per user process and
// one for the kernel's boot thread.
type Process struct {
	// PID is the TID of the main thread.
	PID PID

	name    string
	pagedir usermem.PageDirectory
	main    *Thread

	// exec and files are guarded by the kernel's file-system lock.
	exec  vfs.File
	files FileTable

	// parent and record are guarded by Manager.family. Both are cleared when
	// the parent exits first.
	parent *Process
	record *ChildRecord

	childMu  sync.Mutex
	children []*ChildRecord
	exited   bool

	exiting  atomic.Bool
	nthreads atomic.Int32

	// stackMu protects stackSlots. Slot 0 is the main thread's stack.
	stackMu    sync.Mutex
	stackSlots [MaxThreads]bool
}

// newProcess creates a PCB for main with an empty descriptor table.
func newProcess(main *Thread, name string, pd usermem.PageDirectory) *Process {
	p := &Process{
		PID:     main.tid,
		name:    displayName(name),
		pagedir: pd,
		main:    main,
	}
	p.nthreads.Store(1)
	return p
}

// displayName cuts a program name to NameMax bytes.
func displayName(name string) string {
	if len(name) > NameMax {
		name = name[:NameMax]
	}
	return name
}

// Name returns the display name.
func (p *Process) Name() string {
	return p.name
}

// PageDir returns the address space, or nil for the boot process.
func (p *Process) PageDir() usermem.PageDirectory {
	return p.pagedir
}

// Main returns the main thread.
func (p *Process) Main() *Thread {
	return p.main
}

// Files returns the descriptor table. Callers hold the file-system lock.
func (p *Process) Files() *FileTable {
	return &p.files
}

// Executable returns the open image file. Callers hold the file-system lock.
func (p *Process) Executable() vfs.File {
	return p.exec
}

// Exiting reports whether the process has started tearing down.
func (p *Process) Exiting() bool {
	return p.exiting.Load()
}

// claimStack reserves the lowest free stack slot for an extra thread.
func (p *Process) claimStack() (int, bool) {
	p.stackMu.Lock()
	defer p.stackMu.Unlock()
	for slot := 1; slot < len(p.stackSlots); slot++ {
		if !p.stackSlots[slot] {
			p.stackSlots[slot] = true
			return slot, true
		}
	}
	return 0, false
}

// releaseStack returns slot to the free pool.
func (p *Process) releaseStack(slot int) {
	p.stackMu.Lock()
	defer p.stackMu.Unlock()
	p.stackSlots[slot] = false
}
