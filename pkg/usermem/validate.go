package usermem

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadAddress is matched by every Fault.
var ErrBadAddress = errors.New("usermem: bad user address")

// Fault reports a user address the kernel refused to dereference.
type Fault struct {
	Addr   Addr
	Reason string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("usermem: bad user address %#08x: %s", uint32(f.Addr), f.Reason)
}

// Is makes errors.Is(err, ErrBadAddress) hold for any Fault.
func (f *Fault) Is(target error) bool {
	return target == ErrBadAddress
}

// ValidateByte checks that the kernel may dereference addr.
func ValidateByte(pd PageDirectory, addr Addr) error {
	switch {
	case addr == 0:
		return &Fault{Addr: addr, Reason: "null pointer"}
	case !IsUserAddr(addr):
		return &Fault{Addr: addr, Reason: "kernel address"}
	case !pd.IsMapped(addr):
		return &Fault{Addr: addr, Reason: "unmapped"}
	}
	return nil
}

// ValidateBuffer checks every byte of [addr, addr+n).
func ValidateBuffer(pd PageDirectory, addr Addr, n uint32) error {
	for i := uint32(0); i < n; i++ {
		if err := ValidateByte(pd, addr+Addr(i)); err != nil {
			return err
		}
	}
	return nil
}

// ReadString reads a NUL-terminated string starting at addr, validating
// each byte before it is read.
func ReadString(pd PageDirectory, addr Addr) (string, error) {
	var buf []byte
	for a := addr; ; a++ {
		if err := ValidateByte(pd, a); err != nil {
			return "", err
		}
		b := pd.LoadByte(a)
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
}

// ReadArgs validates and decodes count little-endian words starting at addr.
func ReadArgs(pd PageDirectory, addr Addr, count int) ([]uint32, error) {
	if count <= 0 {
		return nil, nil
	}
	raw, err := ReadBuffer(pd, addr, uint32(count*WordSize))
	if err != nil {
		return nil, err
	}
	args := make([]uint32, count)
	for i := range args {
		args[i] = binary.LittleEndian.Uint32(raw[i*WordSize:])
	}
	return args, nil
}

// ReadBuffer validates [addr, addr+n) and copies it out of user memory.
func ReadBuffer(pd PageDirectory, addr Addr, n uint32) ([]byte, error) {
	if err := ValidateBuffer(pd, addr, n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = pd.LoadByte(addr + Addr(i))
	}
	return buf, nil
}

// WriteBuffer validates the destination range and copies data into it.
func WriteBuffer(pd PageDirectory, addr Addr, data []byte) error {
	if err := ValidateBuffer(pd, addr, uint32(len(data))); err != nil {
		return err
	}
	for i, b := range data {
		pd.StoreByte(addr+Addr(i), b)
	}
	return nil
}

// WriteWord stores a little-endian word at addr after validating it.
func WriteWord(pd PageDirectory, addr Addr, w uint32) error {
	var buf [WordSize]byte
	binary.LittleEndian.PutUint32(buf[:], w)
	return WriteBuffer(pd, addr, buf[:])
}
