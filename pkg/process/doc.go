/*
Package process implements user processes for the kernel: creation from a
command line, parent and child bookkeeping, waiting for exit status, and
teardown.

Every process has one main thread, and its PID is that thread's TID. A
process owns a page directory, a descriptor table and the executable it was
loaded from, which stays open with writes denied until the process exits.

# Creation

Execute allocates a thread, queues a LoadRecord and starts the thread. The
new thread parses the command line, loads the image and lays out argv on
its stack, then reports the outcome through the record. The creator stays
blocked until that report arrives and acknowledges it, so the parent always
knows whether the load succeeded before Execute returns, and the child never
runs user code before its parent has the PID.

# Waiting

A parent holds one ChildRecord per child that it has not waited for. Wait
unlinks the record and blocks until the child posts its status. A record is
consumed by its first wait, so a second wait for the same PID fails.

# Exit

Exit prints the exit line, closes every descriptor, re-allows writes to the
executable, destroys the page directory and posts the status to the parent.
Children that are still running are orphaned: they exit normally later and
nobody collects their status.

# Threads

	Loading -> Running -> Blocked -> Running -> Dying -> Dead
	Loading -> Dead     (load failed)
	Blocked -> Dead     (kernel halted)
*/
package process
