// Package console provides the kernel console: a byte sink for process
// output and a blocking byte source for keyboard input.
package console

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrClosed is returned when writing to a closed console.
var ErrClosed = errors.New("console: closed")

// Console is the device behind descriptors 0 and 1.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	record bytes.Buffer

	inMu     sync.Mutex
	in       bytes.Buffer
	readCond *sync.Cond
	closed   bool
}

// New creates a console that copies output to out. A nil out keeps the
// output only in the console's own record.
func New(out io.Writer) *Console {
	c := &Console{out: out}
	c.readCond = sync.NewCond(&c.inMu)
	return c
}

// WriteBytes writes buf to the console in one piece, so output from
// concurrent processes is never interleaved within a single call.
func (c *Console) WriteBytes(buf []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record.Write(buf)
	if c.out != nil {
		_, _ = c.out.Write(buf)
	}
}

// Output returns everything written to the console so far.
func (c *Console) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record.String()
}

// Feed queues data as keyboard input.
func (c *Console) Feed(data []byte) {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	c.in.Write(data)
	c.readCond.Broadcast()
}

// Write implements io.Writer by feeding keyboard input, so a host stream
// can be piped in with io.Copy.
func (c *Console) Write(data []byte) (int, error) {
	c.inMu.Lock()
	closed := c.closed
	c.inMu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	c.Feed(data)
	return len(data), nil
}

// ReadByte blocks until a byte of input is available. After Close it
// drains what is left and then returns io.EOF.
func (c *Console) ReadByte() (byte, error) {
	c.inMu.Lock()
	defer c.inMu.Unlock()

	for {
		if c.in.Len() > 0 {
			return c.in.ReadByte()
		}
		if c.closed {
			return 0, io.EOF
		}
		c.readCond.Wait()
	}
}

// Close wakes every blocked reader.
func (c *Console) Close() error {
	c.inMu.Lock()
	defer c.inMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.readCond.Broadcast()
	return nil
}
