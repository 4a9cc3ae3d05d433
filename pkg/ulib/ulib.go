// Package ulib is the user-side system call library. Programs run in user
// mode and reach the kernel only through the stubs here: each stub pushes
// its arguments onto the user stack and traps, exactly as compiled user
// code would.
package ulib

import (
	"kernos/pkg/process"
	"kernos/pkg/sysno"
	"kernos/pkg/usermem"
)

// Env is one user thread's view of the machine.
type Env struct {
	u  *process.UserContext
	sp usermem.Addr
}

// New wraps a user context. The stack pointer starts where the kernel left
// it at entry.
func New(u *process.UserContext) *Env {
	return &Env{u: u, sp: u.StackPointer()}
}

// Program adapts a C-style main to a process entry point. The value main
// returns becomes the exit status.
func Program(main func(e *Env, argv []string) int) process.Entry {
	return func(u *process.UserContext) {
		e := New(u)
		e.Exit(main(e, e.args()))
	}
}

// args decodes argc and argv from the initial stack frame.
func (e *Env) args() []string {
	frame := e.Peek(e.sp, 3*usermem.WordSize)
	argc := int(le32(frame[4:]))
	argv := usermem.Addr(le32(frame[8:]))

	args := make([]string, 0, argc)
	for i := 0; i < argc; i++ {
		ptr := usermem.Addr(le32(e.Peek(argv+usermem.Addr(i*usermem.WordSize), usermem.WordSize)))
		args = append(args, e.PeekString(ptr))
	}
	return args
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Context returns the underlying user context.
func (e *Env) Context() *process.UserContext {
	return e.u
}

// SP returns the current stack pointer.
func (e *Env) SP() usermem.Addr {
	return e.sp
}

// Peek reads n bytes of the program's memory. Touching an unmapped address
// is a page fault that kills the process.
func (e *Env) Peek(addr usermem.Addr, n int) []byte {
	buf := make([]byte, n)
	mem := e.u.Memory()
	for i := range buf {
		a := addr + usermem.Addr(i)
		if !mem.IsMapped(a) {
			e.u.Fault(a)
		}
		buf[i] = mem.LoadByte(a)
	}
	return buf
}

// PeekString reads a NUL-terminated string from the program's memory.
func (e *Env) PeekString(addr usermem.Addr) string {
	var s []byte
	for a := addr; ; a++ {
		b := e.Peek(a, 1)[0]
		if b == 0 {
			return string(s)
		}
		s = append(s, b)
	}
}

// Poke writes data into the program's memory, faulting like Peek.
func (e *Env) Poke(addr usermem.Addr, data []byte) {
	mem := e.u.Memory()
	for i, b := range data {
		a := addr + usermem.Addr(i)
		if !mem.IsMapped(a) {
			e.u.Fault(a)
		}
		mem.StoreByte(a, b)
	}
}

// push reserves n bytes below the stack pointer, word aligned, and returns
// their address.
func (e *Env) push(n int) usermem.Addr {
	e.sp -= usermem.Addr(n)
	e.sp &^= usermem.WordSize - 1
	return e.sp
}

// pushBytes copies data onto the stack.
func (e *Env) pushBytes(data []byte) usermem.Addr {
	addr := e.push(len(data))
	e.Poke(addr, data)
	return addr
}

// pushString copies s and a terminating NUL onto the stack.
func (e *Env) pushString(s string) usermem.Addr {
	return e.pushBytes(append([]byte(s), 0))
}

// Syscall pushes nr and args onto the stack and traps. It returns the
// value the kernel left in EAX. The stack pointer is restored afterwards.
func (e *Env) Syscall(nr sysno.Number, args ...uint32) uint32 {
	mark := e.sp
	defer func() { e.sp = mark }()

	words := make([]byte, 0, (len(args)+1)*usermem.WordSize)
	for _, w := range append([]uint32{uint32(nr)}, args...) {
		words = append(words, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return e.Trap(e.pushBytes(words))
}

// Trap enters the kernel with the stack pointer set to esp, without
// touching the stack. The kernel reads the call number at esp.
func (e *Env) Trap(esp usermem.Addr) uint32 {
	f := &process.IntrFrame{ESP: esp}
	e.u.Trap(f)
	return f.EAX
}

// Spawn runs fn on a new thread of this process with its own stack.
func (e *Env) Spawn(fn func(e *Env)) (*process.Thread, error) {
	return e.u.Spawn(func(u *process.UserContext) {
		fn(New(u))
	})
}
