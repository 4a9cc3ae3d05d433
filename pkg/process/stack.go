package process

import (
	"errors"
	"fmt"

	"kernos/pkg/usermem"
)

// ErrArgsTooLong is returned when the arguments do not fit in the initial
// stack page.
var ErrArgsTooLong = errors.New("arguments do not fit on the stack")

// MaxStackPages bounds the stack region below PhysBase. The main thread
// gets the top page, and extra threads get pages further down.
const MaxStackPages = 1 << 11

// threadStack returns the stack page of stack slot k. Each slot sits two
// pages below the previous one, leaving an unmapped guard page between them.
func threadStack(slot int) usermem.Addr {
	return usermem.StackPage - usermem.Addr(2*slot)*usermem.PageSize
}

// setupStack maps the initial stack page and lays argv out on it:
//
//	argv strings, word alignment, argv[argc] = 0, argv[argc-1] .. argv[0],
//	argv, argc, fake return address
//
// It returns the resulting stack pointer, which addresses the fake return
// address.
func setupStack(pd usermem.PageDirectory, argv []string) (usermem.Addr, error) {
	need := 0
	for _, arg := range argv {
		need += len(arg) + 1
	}
	need += usermem.WordSize - 1
	need += (len(argv) + 4) * usermem.WordSize
	if need > usermem.PageSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrArgsTooLong, need)
	}

	if err := pd.Map(usermem.StackPage); err != nil {
		return 0, err
	}

	esp := usermem.PhysBase
	ptrs := make([]usermem.Addr, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		esp -= usermem.Addr(len(argv[i]) + 1)
		if err := usermem.WriteBuffer(pd, esp, append([]byte(argv[i]), 0)); err != nil {
			return 0, err
		}
		ptrs[i] = esp
	}
	esp &^= usermem.WordSize - 1

	push := func(w uint32) error {
		esp -= usermem.WordSize
		return usermem.WriteWord(pd, esp, w)
	}

	if err := push(0); err != nil {
		return 0, err
	}
	for i := len(ptrs) - 1; i >= 0; i-- {
		if err := push(uint32(ptrs[i])); err != nil {
			return 0, err
		}
	}
	argvAddr := esp
	if err := push(uint32(argvAddr)); err != nil {
		return 0, err
	}
	if err := push(uint32(len(argv))); err != nil {
		return 0, err
	}
	if err := push(0); err != nil {
		return 0, err
	}
	return esp, nil
}
