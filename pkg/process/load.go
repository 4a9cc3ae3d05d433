package process

// LoadRecord carries the outcome of one Execute call between the creating
// thread and the thread that loads the new image.
//
// The new thread fills in loaded and proc and then closes reported. The
// creator reads them, drops the record from the load list and closes acked.
// Only then does the new thread enter user code or give up.
type LoadRecord struct {
	pid      PID
	loaded   bool
	proc     *Process
	reported chan struct{}
	acked    chan struct{}
}

func newLoadRecord(pid PID) *LoadRecord {
	return &LoadRecord{
		pid:      pid,
		reported: make(chan struct{}),
		acked:    make(chan struct{}),
	}
}

// enqueueLoad adds lr to the load list.
func (m *Manager) enqueueLoad(lr *LoadRecord) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	m.loading = append(m.loading, lr)
}

// dequeueLoad removes lr from the load list.
func (m *Manager) dequeueLoad(lr *LoadRecord) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	for i, rec := range m.loading {
		if rec == lr {
			m.loading = append(m.loading[:i], m.loading[i+1:]...)
			return
		}
	}
}

// Loading returns the PIDs of processes whose load is in flight.
func (m *Manager) Loading() []PID {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	pids := make([]PID, len(m.loading))
	for i, rec := range m.loading {
		pids[i] = rec.pid
	}
	return pids
}
