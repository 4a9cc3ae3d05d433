package process

import (
	"sync"

	"kernos/pkg/usermem"
)

// TID identifies a kernel thread.
type TID int32

// PID identifies a process. A process's PID is the TID of its main thread.
type PID = TID

// TIDError is returned to user programs for a failed exec or wait.
const TIDError TID = -1

// IntrFrame is the part of the saved user register state the system call
// path reads and writes.
type IntrFrame struct {
	// ESP points at the system call number on the user stack.
	ESP usermem.Addr
	// EAX receives the system call's return value.
	EAX uint32
}

// Entry is the user-mode body of a program. It runs on the process's
// thread and reaches the kernel only through its UserContext.
type Entry func(u *UserContext)

// TrapHandler services a system call trap.
type TrapHandler interface {
	Syscall(t *Thread, f *IntrFrame)
}

// Thread is a kernel thread. User threads belong to exactly one process.
type Thread struct {
	tid  TID
	name string
	proc *Process

	mu     sync.Mutex
	state  ThreadState
	exited chan struct{}
	once   sync.Once
}

// newThread creates a thread in the loading state.
func newThread(tid TID, name string) *Thread {
	return &Thread{
		tid:    tid,
		name:   name,
		state:  StateLoading,
		exited: make(chan struct{}),
	}
}

// TID returns the thread identifier.
func (t *Thread) TID() TID {
	return t.tid
}

// Name returns the thread name.
func (t *Thread) Name() string {
	return t.name
}

// Process returns the process the thread belongs to, or nil while it is
// still loading.
func (t *Thread) Process() *Process {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.proc
}

// attach binds the thread to p.
func (t *Thread) attach(p *Process) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.proc = p
}

// Join blocks until the thread has finished.
func (t *Thread) Join() {
	<-t.exited
}

// Done returns a channel closed when the thread has finished.
func (t *Thread) Done() <-chan struct{} {
	return t.exited
}

// finish marks the thread dead. It runs from the thread's own goroutine,
// including when that goroutine ends through runtime.Goexit.
func (t *Thread) finish() {
	t.once.Do(func() {
		t.mu.Lock()
		t.state = StateDead
		t.mu.Unlock()
		close(t.exited)
	})
}

// UserContext is what a running user program sees of the machine: its own
// address space, its stack pointer at entry, and the trap instruction.
type UserContext struct {
	thread *Thread
	mem    usermem.PageDirectory
	esp    usermem.Addr
	m      *Manager
}

// Thread returns the thread running the program.
func (u *UserContext) Thread() *Thread {
	return u.thread
}

// Memory returns the program's address space.
func (u *UserContext) Memory() usermem.PageDirectory {
	return u.mem
}

// StackPointer returns the stack pointer the program started with.
func (u *UserContext) StackPointer() usermem.Addr {
	return u.esp
}

// Trap enters the kernel with f. If the process is being torn down or the
// kernel has halted, the calling thread ends instead.
func (u *UserContext) Trap(f *IntrFrame) {
	if u.m.halted() || u.thread.Process().Exiting() {
		u.m.endThread()
	}
	u.m.trap.Syscall(u.thread, f)
}

// Fault reports that user code touched addr without a valid mapping. The
// process is killed with status -1 and Fault does not return.
func (u *UserContext) Fault(addr usermem.Addr) {
	u.m.Kill(u.thread, &usermem.Fault{Addr: addr, Reason: "page fault in user code"})
}

// Spawn starts fn on a new thread of the same process.
func (u *UserContext) Spawn(fn Entry) (*Thread, error) {
	return u.m.CreateThread(u.thread, fn)
}
