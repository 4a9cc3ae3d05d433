package process

import "sync"

// ChildRecord lets a parent collect one child's exit status. The record
// belongs to the parent; the child only posts into it.
type ChildRecord struct {
	pid    PID
	status int
	done   chan struct{}
	once   sync.Once
}

// newChildRecord creates a record whose status is -1 until posted.
func newChildRecord(pid PID) *ChildRecord {
	return &ChildRecord{
		pid:    pid,
		status: -1,
		done:   make(chan struct{}),
	}
}

// PID returns the child's identifier.
func (r *ChildRecord) PID() PID {
	return r.pid
}

// post stores status and raises the completion signal. Only the first
// call has any effect. The status write happens before the channel close,
// so a waiter that received from done reads it without a lock.
func (r *ChildRecord) post(status int) {
	r.once.Do(func() {
		r.status = status
		close(r.done)
	})
}

// findChild unlinks and returns the record for pid. The caller holds
// p.childMu.
func (p *Process) findChild(pid PID) *ChildRecord {
	for i, rec := range p.children {
		if rec.pid == pid {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return rec
		}
	}
	return nil
}

// Children returns the PIDs of children that have not been waited for.
func (p *Process) Children() []PID {
	p.childMu.Lock()
	defer p.childMu.Unlock()
	pids := make([]PID, len(p.children))
	for i, rec := range p.children {
		pids[i] = rec.pid
	}
	return pids
}
