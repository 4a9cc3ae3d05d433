package process

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
)

// Process manager errors.
var (
	ErrNotChild       = errors.New("not a child of the calling process")
	ErrLoadFailed     = errors.New("load failed")
	ErrBadCommandLine = errors.New("bad command line")
	ErrHalted         = errors.New("kernel halted")
	ErrNoProcess      = errors.New("thread has no process")
	ErrExiting        = errors.New("process is exiting")
	ErrTooManyThreads = errors.New("too many threads")
	ErrMissingConfig  = errors.New("incomplete process manager config")
)

// errReturned is the kill reason for user code that returned from its entry
// point instead of calling exit.
var errReturned = errors.New("user code returned without exit")

// MaxThreads bounds the number of threads in one process.
const MaxThreads = 127

// Config contains the collaborators of a Manager.
type Config struct {
	// FileSystem holds the executables. Required.
	FileSystem vfs.FileSystem
	// FSLock serializes file-system calls and descriptor-table changes
	// across all processes. Defaults to a private mutex.
	FSLock sync.Locker
	// Loader maps executables. Required.
	Loader Loader
	// Trap services system calls made by user programs. Required.
	Trap TrapHandler
	// Console receives exit lines. Defaults to discarding them.
	Console Console
	// Scheduler tracks active threads. Defaults to an ActiveList.
	Scheduler Scheduler
	// NewPageDirectory creates address spaces. Defaults to usermem.NewMemory.
	NewPageDirectory func() usermem.PageDirectory
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

type discardConsole struct{}

func (discardConsole) WriteBytes([]byte) {}

// Manager is the PCB registry. It creates, waits for and tears down user
// processes.
type Manager struct {
	fs      vfs.FileSystem
	fsLock  sync.Locker
	loader  Loader
	trap    TrapHandler
	console Console
	sched   Scheduler
	newPD   func() usermem.PageDirectory
	log     *zap.Logger

	// nextTID generates thread identifiers.
	nextTID atomic.Int32
	// mu protects procs.
	mu    sync.RWMutex
	procs map[PID]*Process
	// loadMu protects the load list.
	loadMu  sync.Mutex
	loading []*LoadRecord
	// family protects parent and record links between processes. Lock
	// order: family, then Process.childMu, then mu.
	family sync.Mutex

	down     chan struct{}
	downOnce sync.Once

	bootOnce sync.Once
	boot     *Thread
}

// NewManager creates a process manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FileSystem == nil || cfg.Loader == nil || cfg.Trap == nil {
		return nil, ErrMissingConfig
	}
	m := &Manager{
		fs:      cfg.FileSystem,
		fsLock:  cfg.FSLock,
		loader:  cfg.Loader,
		trap:    cfg.Trap,
		console: cfg.Console,
		sched:   cfg.Scheduler,
		newPD:   cfg.NewPageDirectory,
		log:     cfg.Logger,
		procs:   make(map[PID]*Process),
		down:    make(chan struct{}),
	}
	if m.fsLock == nil {
		m.fsLock = &sync.Mutex{}
	}
	if m.console == nil {
		m.console = discardConsole{}
	}
	if m.sched == nil {
		m.sched = NewActiveList()
	}
	if m.newPD == nil {
		m.newPD = func() usermem.PageDirectory { return usermem.NewMemory() }
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.With(zap.String("component", "process"))
	return m, nil
}

// allocTID allocates a new unique TID.
func (m *Manager) allocTID() TID {
	return TID(m.nextTID.Add(1))
}

// Boot returns the kernel's boot thread, creating it on first use. Its
// process has no address space and no parent; user processes started from
// it are its children.
func (m *Manager) Boot() *Thread {
	m.bootOnce.Do(func() {
		t := newThread(m.allocTID(), "main")
		t.state = StateRunning
		p := newProcess(t, "main", nil)
		t.attach(p)
		m.register(p)
		m.boot = t
	})
	return m.boot
}

// Execute starts the program named by the first token of cmdline as a child
// of the caller's process. It blocks until the new process has either
// loaded or failed to load, and returns the new PID.
func (m *Manager) Execute(parent *Thread, cmdline string) (PID, error) {
	pp := parent.Process()
	if pp == nil {
		return TIDError, ErrNoProcess
	}
	if m.halted() {
		return TIDError, ErrHalted
	}

	argv, err := splitCommandLine(cmdline)
	if err != nil {
		return TIDError, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	t := newThread(m.allocTID(), displayName(argv[0]))
	lr := newLoadRecord(t.tid)
	m.enqueueLoad(lr)

	go m.startProcess(t, pp, argv, lr)

	_ = parent.TransitionTo(StateBlocked)
	if !m.await(lr.reported) {
		m.dequeueLoad(lr)
		return TIDError, ErrHalted
	}
	_ = parent.TransitionTo(StateRunning)

	loaded := lr.loaded
	m.dequeueLoad(lr)
	close(lr.acked)

	if !loaded {
		return TIDError, fmt.Errorf("%w: %q", ErrLoadFailed, cmdline)
	}
	return t.tid, nil
}

// startProcess is the body of a new process's main thread.
func (m *Manager) startProcess(t *Thread, parent *Process, argv []string, lr *LoadRecord) {
	defer t.finish()

	p, u, entry, err := m.load(t, argv)
	if err != nil {
		m.log.Info("load failed",
			zap.Int32("pid", int32(t.tid)),
			zap.Strings("argv", argv),
			zap.Error(err))
		close(lr.reported)
		m.await(lr.acked)
		return
	}

	m.adopt(parent, p)
	lr.proc = p
	lr.loaded = true
	close(lr.reported)

	if !m.await(lr.acked) {
		return
	}

	_ = t.TransitionTo(StateRunning)
	_ = m.sched.Schedule(t)
	m.log.Info("process started",
		zap.Int32("pid", int32(p.PID)),
		zap.String("name", p.name),
		zap.Int32("parent", int32(parent.PID)))

	entry(u)
	m.Kill(t, errReturned)
}

// splitCommandLine tokenizes cmdline. argv[0] names the program.
func splitCommandLine(cmdline string) ([]string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadCommandLine, err)
	}
	if len(argv) == 0 {
		return nil, ErrBadCommandLine
	}
	return argv, nil
}

// load builds the address space and image for argv on thread t.
func (m *Manager) load(t *Thread, argv []string) (*Process, *UserContext, Entry, error) {
	pd := m.newPD()
	p := newProcess(t, argv[0], pd)

	m.fsLock.Lock()
	f, err := m.fs.Open(argv[0])
	if err != nil {
		m.fsLock.Unlock()
		pd.Destroy()
		m.console.WriteBytes([]byte(fmt.Sprintf("load: %s: open failed\n", p.name)))
		return nil, nil, nil, fmt.Errorf("%w: open %s: %w", ErrLoadFailed, argv[0], err)
	}
	entry, err := m.loader.Load(f, pd)
	if err != nil {
		_ = f.Close()
		m.fsLock.Unlock()
		pd.Destroy()
		m.console.WriteBytes([]byte(fmt.Sprintf("load: %s: bad image\n", p.name)))
		return nil, nil, nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, argv[0], err)
	}
	f.DenyWrite()
	p.exec = f
	m.fsLock.Unlock()

	esp, err := setupStack(pd, argv)
	if err != nil {
		m.fsLock.Lock()
		_ = p.exec.Close()
		p.exec = nil
		m.fsLock.Unlock()
		pd.Destroy()
		m.console.WriteBytes([]byte(fmt.Sprintf("load: %s: arguments too long\n", p.name)))
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	t.attach(p)
	m.register(p)
	return p, &UserContext{thread: t, mem: pd, esp: esp, m: m}, entry, nil
}

// adopt links child under parent with a fresh ChildRecord.
func (m *Manager) adopt(parent, child *Process) {
	m.family.Lock()
	defer m.family.Unlock()

	parent.childMu.Lock()
	defer parent.childMu.Unlock()
	if parent.exited {
		return
	}
	rec := newChildRecord(child.PID)
	parent.children = append(parent.children, rec)
	child.parent = parent
	child.record = rec
}

// Wait blocks until the child pid of the caller's process exits and
// returns its status. Each child can be waited for once; any other pid
// fails at once with ErrNotChild.
func (m *Manager) Wait(t *Thread, pid PID) (int, error) {
	p := t.Process()
	if p == nil {
		return -1, ErrNoProcess
	}

	// Unlinking before blocking makes a second concurrent wait for the
	// same pid fail instead of sharing the status.
	p.childMu.Lock()
	rec := p.findChild(pid)
	p.childMu.Unlock()
	if rec == nil {
		return -1, fmt.Errorf("%w: %d", ErrNotChild, pid)
	}

	_ = t.TransitionTo(StateBlocked)
	if !m.await(rec.done) {
		return -1, ErrHalted
	}
	_ = t.TransitionTo(StateRunning)
	return rec.status, nil
}

// Exit tears down the caller's process with status and ends the calling
// thread. It does not return.
func (m *Manager) Exit(t *Thread, status int) {
	m.exit(t, status)
	m.endThread()
}

// Kill exits the caller's process with status -1. It does not return.
func (m *Manager) Kill(t *Thread, reason error) {
	m.log.Warn("killing process",
		zap.Int32("tid", int32(t.tid)),
		zap.String("name", t.name),
		zap.Error(reason))
	m.Exit(t, -1)
}

// exit runs the process teardown once per process.
func (m *Manager) exit(t *Thread, status int) {
	p := t.Process()
	if p == nil || !p.exiting.CompareAndSwap(false, true) {
		return
	}
	_ = t.TransitionTo(StateDying)

	m.console.WriteBytes([]byte(fmt.Sprintf("%s: exit(%d)\n", p.name, status)))

	m.fsLock.Lock()
	closed := p.files.CloseAll()
	if p.exec != nil {
		p.exec.AllowWrite()
		_ = p.exec.Close()
		p.exec = nil
	}
	m.fsLock.Unlock()

	if p.pagedir != nil {
		p.pagedir.Destroy()
	}
	_ = m.sched.Remove(p.main.tid)
	m.unregister(p.PID)

	m.family.Lock()
	p.childMu.Lock()
	orphans := len(p.children)
	for _, rec := range p.children {
		if child := m.lookup(rec.pid); child != nil {
			child.parent = nil
			child.record = nil
		}
	}
	p.children = nil
	p.exited = true
	p.childMu.Unlock()

	if p.record != nil {
		p.record.post(status)
	}
	p.parent = nil
	p.record = nil
	m.family.Unlock()

	m.log.Info("process exited",
		zap.Int32("pid", int32(p.PID)),
		zap.String("name", p.name),
		zap.Int("status", status),
		zap.Int("files_closed", closed),
		zap.Int("orphans", orphans))
}

// CreateThread starts fn on a new thread of the caller's process with its
// own stack page.
func (m *Manager) CreateThread(t *Thread, fn Entry) (*Thread, error) {
	p := t.Process()
	if p == nil || p.pagedir == nil {
		return nil, ErrNoProcess
	}
	if p.Exiting() {
		return nil, ErrExiting
	}
	n := p.nthreads.Add(1)
	if n > MaxThreads {
		p.nthreads.Add(-1)
		return nil, ErrTooManyThreads
	}

	// Slots of finished threads are reused, so only live threads count
	// against the stack region.
	slot, ok := p.claimStack()
	if !ok {
		p.nthreads.Add(-1)
		return nil, ErrTooManyThreads
	}
	if 2*slot >= MaxStackPages {
		p.releaseStack(slot)
		p.nthreads.Add(-1)
		return nil, ErrTooManyThreads
	}
	stack := threadStack(slot)
	if err := p.pagedir.Map(stack); err != nil {
		p.releaseStack(slot)
		p.nthreads.Add(-1)
		return nil, err
	}
	nt := newThread(m.allocTID(), p.name)
	nt.attach(p)
	nt.state = StateRunning
	u := &UserContext{thread: nt, mem: p.pagedir, esp: stack + usermem.PageSize, m: m}
	_ = m.sched.Schedule(nt)

	go func() {
		defer nt.finish()
		defer func() {
			_ = m.sched.Remove(nt.tid)
			p.pagedir.Unmap(stack)
			p.releaseStack(slot)
			p.nthreads.Add(-1)
		}()
		fn(u)
	}()
	return nt, nil
}

// Shutdown releases every thread blocked in Execute or Wait. Those calls
// return ErrHalted, and user threads end at their next trap.
func (m *Manager) Shutdown() {
	m.downOnce.Do(func() {
		close(m.down)
		m.log.Info("process manager halted")
	})
}

// halted reports whether Shutdown has been called.
func (m *Manager) halted() bool {
	select {
	case <-m.down:
		return true
	default:
		return false
	}
}

// await blocks until ch is closed or the manager halts. It reports false
// on halt.
func (m *Manager) await(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-m.down:
		return false
	}
}

// endThread ends the calling goroutine's kernel thread.
func (m *Manager) endThread() {
	runtime.Goexit()
}

// register adds p to the registry.
func (m *Manager) register(p *Process) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[p.PID] = p
}

// unregister removes pid from the registry.
func (m *Manager) unregister(pid PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, pid)
}

// lookup returns the live process pid, or nil.
func (m *Manager) lookup(pid PID) *Process {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.procs[pid]
}

// GetProcess retrieves a live process by PID.
func (m *Manager) GetProcess(pid PID) (*Process, error) {
	if p := m.lookup(pid); p != nil {
		return p, nil
	}
	return nil, ErrProcessNotFound
}

// Processes returns all live processes ordered by PID.
func (m *Manager) Processes() []*Process {
	m.mu.RLock()
	procs := make([]*Process, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.mu.RUnlock()

	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	return procs
}

// CountProcesses returns the number of live processes, the boot process
// included.
func (m *Manager) CountProcesses() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.procs)
}

// Parent returns p's parent, or nil once the parent has exited.
func (m *Manager) Parent(p *Process) *Process {
	m.family.Lock()
	defer m.family.Unlock()
	return p.parent
}
