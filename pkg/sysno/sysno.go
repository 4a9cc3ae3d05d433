// Package sysno lists the system call numbers shared by the kernel's
// dispatcher and the user library.
package sysno

import "strconv"

// Number identifies a system call. It is the first word on the user stack
// at the time of the trap.
type Number uint32

// System call numbers.
const (
	Halt     Number = iota // halt()
	Exit                   // exit(status)
	Exec                   // exec(cmdline) = pid
	Wait                   // wait(pid) = status
	Create                 // create(name, size) = ok
	Remove                 // remove(name) = ok
	Open                   // open(name) = fd
	Filesize               // filesize(fd) = size
	Read                   // read(fd, buf, size) = n
	Write                  // write(fd, buf, size) = n
	Seek                   // seek(fd, pos)
	Tell                   // tell(fd) = pos
	Close                  // close(fd)
	Practice               // practice(n) = n+1

	// Count is one past the highest defined number.
	Count
)

var names = [...]string{
	Halt:     "halt",
	Exit:     "exit",
	Exec:     "exec",
	Wait:     "wait",
	Create:   "create",
	Remove:   "remove",
	Open:     "open",
	Filesize: "filesize",
	Read:     "read",
	Write:    "write",
	Seek:     "seek",
	Tell:     "tell",
	Close:    "close",
	Practice: "practice",
}

// String returns the call's name, or its number for unknown calls.
func (n Number) String() string {
	if n < Count {
		return names[n]
	}
	return "sys_" + strconv.FormatUint(uint64(n), 10)
}
