package usermem

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Addr is a 32-bit user virtual address.
type Addr uint32

// Address space layout.
const (
	// PageSize is the size of one user page.
	PageSize = 4096
	// WordSize is the size of one argument word on the user stack.
	WordSize = 4
	// PhysBase is the first kernel address; user addresses lie below it.
	PhysBase Addr = 0xC0000000
	// CodeBase is where executable images are mapped.
	CodeBase Addr = 0x08048000
	// StackPage is the page holding the initial user stack.
	StackPage = PhysBase - PageSize
)

// Memory errors.
var (
	ErrNotAligned     = errors.New("usermem: address is not page aligned")
	ErrKernelAddress  = errors.New("usermem: address is not a user address")
	ErrAlreadyMapped  = errors.New("usermem: page already mapped")
	ErrDestroyed      = errors.New("usermem: page directory destroyed")
	ErrAddressOverrun = errors.New("usermem: range overruns the user address space")
)

// PageDirectory is the per-process address-space mapping consumed by the
// kernel. LoadByte and StoreByte may only be called on addresses for which
// IsMapped reports true.
type PageDirectory interface {
	// IsMapped reports whether addr is a user address backed by a present page.
	IsMapped(addr Addr) bool
	// LoadByte reads the byte at addr.
	LoadByte(addr Addr) byte
	// StoreByte writes b at addr.
	StoreByte(addr Addr, b byte)
	// Map installs a zeroed page at the page-aligned address upage.
	Map(upage Addr) error
	// Unmap removes the page at upage, if present.
	Unmap(upage Addr)
	// Destroy releases every page. The directory maps nothing afterwards.
	Destroy()
}

// IsUserAddr reports whether addr lies below PhysBase.
func IsUserAddr(addr Addr) bool {
	return addr < PhysBase
}

// PageOf returns the page containing addr.
func PageOf(addr Addr) Addr {
	return addr &^ (PageSize - 1)
}

// PageOffset returns the offset of addr within its page.
func PageOffset(addr Addr) int {
	return int(addr & (PageSize - 1))
}

type page [PageSize]byte

// Memory is a PageDirectory backed by Go memory.
type Memory struct {
	mu        sync.RWMutex
	pages     map[Addr]*page
	destroyed bool
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[Addr]*page),
	}
}

// Map implements PageDirectory.Map.
func (m *Memory) Map(upage Addr) error {
	if PageOffset(upage) != 0 {
		return fmt.Errorf("%w: %#08x", ErrNotAligned, uint32(upage))
	}
	if !IsUserAddr(upage) {
		return fmt.Errorf("%w: %#08x", ErrKernelAddress, uint32(upage))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrDestroyed
	}
	if _, ok := m.pages[upage]; ok {
		return fmt.Errorf("%w: %#08x", ErrAlreadyMapped, uint32(upage))
	}
	m.pages[upage] = new(page)
	return nil
}

// MapRange maps every page touching [addr, addr+n).
func (m *Memory) MapRange(addr Addr, n int) error {
	if n <= 0 {
		return nil
	}
	end := uint64(addr) + uint64(n)
	if end > uint64(PhysBase) {
		return ErrAddressOverrun
	}
	for upage := PageOf(addr); uint64(upage) < end; upage += PageSize {
		if err := m.Map(upage); err != nil && !errors.Is(err, ErrAlreadyMapped) {
			return err
		}
	}
	return nil
}

// Unmap implements PageDirectory.Unmap. Unmapping an absent page is a no-op.
func (m *Memory) Unmap(upage Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, PageOf(upage))
}

// IsMapped implements PageDirectory.IsMapped.
func (m *Memory) IsMapped(addr Addr) bool {
	if !IsUserAddr(addr) {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pages[PageOf(addr)]
	return ok
}

// LoadByte implements PageDirectory.LoadByte. Unmapped addresses read as zero.
func (m *Memory) LoadByte(addr Addr) byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pg, ok := m.pages[PageOf(addr)]
	if !ok {
		return 0
	}
	return pg[PageOffset(addr)]
}

// StoreByte implements PageDirectory.StoreByte. Stores to unmapped
// addresses are dropped.
func (m *Memory) StoreByte(addr Addr, b byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pg, ok := m.pages[PageOf(addr)]
	if !ok {
		return
	}
	pg[PageOffset(addr)] = b
}

// Destroy implements PageDirectory.Destroy.
func (m *Memory) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = make(map[Addr]*page)
	m.destroyed = true
}

// Destroyed reports whether Destroy has been called.
func (m *Memory) Destroyed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.destroyed
}

// Pages returns the mapped pages in ascending order.
func (m *Memory) Pages() []Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pages := make([]Addr, 0, len(m.pages))
	for upage := range m.pages {
		pages = append(pages, upage)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })
	return pages
}
