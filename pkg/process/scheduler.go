package process

import (
	"errors"
	"sync"
)

// ErrThreadNotFound is returned when removing a thread that is not tracked.
var ErrThreadNotFound = errors.New("thread not found")

// Scheduler is the scheduler's bookkeeping of active user threads. The
// process manager adds a thread once its image is loaded and removes it at
// teardown. Run-queue policy lives behind this interface.
type Scheduler interface {
	// Schedule adds a thread to the active set.
	Schedule(t *Thread) error
	// Remove removes a thread from the active set.
	Remove(tid TID) error
	// Len returns the number of active threads.
	Len() int
}

// ActiveList is a Scheduler that keeps threads in arrival order.
type ActiveList struct {
	mu    sync.Mutex
	items []*Thread
	index map[TID]int
}

// NewActiveList creates an empty active list.
func NewActiveList() *ActiveList {
	return &ActiveList{
		items: make([]*Thread, 0),
		index: make(map[TID]int),
	}
}

// Schedule implements Scheduler.Schedule. Scheduling a tracked thread is a
// no-op.
func (l *ActiveList) Schedule(t *Thread) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.index[t.tid]; ok {
		return nil
	}
	l.index[t.tid] = len(l.items)
	l.items = append(l.items, t)
	return nil
}

// Remove implements Scheduler.Remove.
func (l *ActiveList) Remove(tid TID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.index[tid]
	if !ok {
		return ErrThreadNotFound
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	delete(l.index, tid)
	for i := idx; i < len(l.items); i++ {
		l.index[l.items[i].tid] = i
	}
	return nil
}

// Len implements Scheduler.Len.
func (l *ActiveList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Contains checks if a thread is in the list.
func (l *ActiveList) Contains(tid TID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.index[tid]
	return ok
}

// Threads returns the active threads in arrival order.
func (l *ActiveList) Threads() []*Thread {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Thread(nil), l.items...)
}
