/*
Package usermem models the user half of a process address space and the
checks the kernel runs before it touches user memory.

A PageDirectory maps 4 KiB user pages below PhysBase. The kernel only asks
it whether an address is mapped and present, and loads or stores single
bytes. Memory is the in-tree implementation used by the process manager.

# Validation

Every pointer a user program hands to the kernel is checked one byte at a
time before it is read:

	name, err := usermem.ReadString(pd, usermem.Addr(args[0]))
	if err != nil {
		// err wraps ErrBadAddress; the caller is killed with status -1
	}

Buffers are checked byte by byte as well, since a buffer may straddle a
mapped and an unmapped page. A failed check returns a *Fault.
*/
package usermem
