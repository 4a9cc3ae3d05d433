package ulib

import (
	"kernos/pkg/process"
	"kernos/pkg/sysno"
	"kernos/pkg/usermem"
)

// Console descriptors.
const (
	Stdin  = 0
	Stdout = 1
)

// Halt powers the machine off. It does not return.
func (e *Env) Halt() {
	e.Syscall(sysno.Halt)
}

// Exit terminates the process with status. It does not return.
func (e *Env) Exit(status int) {
	e.Syscall(sysno.Exit, uint32(int32(status)))
}

// Exec starts cmdline as a child process and returns its PID, or -1 if
// the program could not be loaded.
func (e *Env) Exec(cmdline string) process.PID {
	mark := e.sp
	defer func() { e.sp = mark }()
	return process.PID(int32(e.Syscall(sysno.Exec, uint32(e.pushString(cmdline)))))
}

// Wait waits for child pid to exit and returns its status, or -1 if pid
// is not a child that can be waited for.
func (e *Env) Wait(pid process.PID) int {
	return int(int32(e.Syscall(sysno.Wait, uint32(int32(pid)))))
}

// Create creates a file of size zero bytes.
func (e *Env) Create(name string, size uint32) bool {
	mark := e.sp
	defer func() { e.sp = mark }()
	return e.Syscall(sysno.Create, uint32(e.pushString(name)), size) != 0
}

// Remove deletes a file.
func (e *Env) Remove(name string) bool {
	mark := e.sp
	defer func() { e.sp = mark }()
	return e.Syscall(sysno.Remove, uint32(e.pushString(name))) != 0
}

// Open opens a file and returns its descriptor, or -1.
func (e *Env) Open(name string) int {
	mark := e.sp
	defer func() { e.sp = mark }()
	return int(int32(e.Syscall(sysno.Open, uint32(e.pushString(name)))))
}

// Filesize returns the length of the open file fd, or -1.
func (e *Env) Filesize(fd int) int {
	return int(int32(e.Syscall(sysno.Filesize, uint32(int32(fd)))))
}

// Read reads up to len(buf) bytes from fd into buf and returns the count,
// or -1.
func (e *Env) Read(fd int, buf []byte) int {
	mark := e.sp
	defer func() { e.sp = mark }()
	addr := e.push(len(buf))
	n := int(int32(e.Syscall(sysno.Read, uint32(int32(fd)), uint32(addr), uint32(len(buf)))))
	if n > 0 {
		copy(buf, e.Peek(addr, n))
	}
	return n
}

// Write writes buf to fd and returns the count written, or -1.
func (e *Env) Write(fd int, buf []byte) int {
	mark := e.sp
	defer func() { e.sp = mark }()
	addr := e.pushBytes(buf)
	return int(int32(e.Syscall(sysno.Write, uint32(int32(fd)), uint32(addr), uint32(len(buf)))))
}

// Seek moves the position of fd.
func (e *Env) Seek(fd int, pos uint32) {
	e.Syscall(sysno.Seek, uint32(int32(fd)), pos)
}

// Tell returns the position of fd, or -1 as an unsigned value.
func (e *Env) Tell(fd int) uint32 {
	return e.Syscall(sysno.Tell, uint32(int32(fd)))
}

// Close closes fd.
func (e *Env) Close(fd int) {
	e.Syscall(sysno.Close, uint32(int32(fd)))
}

// Practice returns n+1.
func (e *Env) Practice(n int32) int32 {
	return int32(e.Syscall(sysno.Practice, uint32(n)))
}

// Puts writes s to the console.
func (e *Env) Puts(s string) {
	e.Write(Stdout, []byte(s))
}

// Data returns the program's initialized data: n bytes at the start of its
// image.
func (e *Env) Data(n int) []byte {
	return e.Peek(usermem.CodeBase, n)
}
