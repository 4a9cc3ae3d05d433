// Package kernel ties the process manager, the file system and the console
// together behind the system call trap.
package kernel

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"kernos/pkg/console"
	"kernos/pkg/process"
	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
	"kernos/pkg/vfs/memfs"
)

// Kernel errors.
var (
	ErrNoLoader   = errors.New("kernel: no loader configured")
	ErrPoweredOff = errors.New("kernel: powered off")
)

// Console is the device behind descriptors 0 and 1.
type Console interface {
	WriteBytes(buf []byte)
	ReadByte() (byte, error)
}

// Config holds kernel configuration.
type Config struct {
	// FileSystem defaults to an empty memfs.
	FileSystem vfs.FileSystem
	// Console defaults to a console that records output only.
	Console Console
	// Loader maps executables. Required.
	Loader process.Loader
	// Scheduler defaults to a process.ActiveList.
	Scheduler process.Scheduler
	// PageDirectory creates address spaces. Defaults to usermem.NewMemory.
	PageDirectory func() usermem.PageDirectory
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// applyDefaults fills in unset fields.
func (c *Config) applyDefaults() {
	if c.FileSystem == nil {
		c.FileSystem = memfs.New()
	}
	if c.Console == nil {
		c.Console = console.New(nil)
	}
	if c.Scheduler == nil {
		c.Scheduler = process.NewActiveList()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Kernel is one booted machine.
type Kernel struct {
	fs      vfs.FileSystem
	fsLock  sync.Mutex
	console Console
	procs   *process.Manager
	sched   process.Scheduler
	log     *zap.Logger
	bootID  uuid.UUID

	off     chan struct{}
	offOnce sync.Once
}

// New creates a kernel from cfg.
func New(cfg Config) (*Kernel, error) {
	if cfg.Loader == nil {
		return nil, ErrNoLoader
	}
	cfg.applyDefaults()

	k := &Kernel{
		fs:      cfg.FileSystem,
		console: cfg.Console,
		sched:   cfg.Scheduler,
		bootID:  uuid.New(),
		off:     make(chan struct{}),
	}
	k.log = cfg.Logger.With(zap.String("boot_id", k.bootID.String()))

	procs, err := process.NewManager(process.Config{
		FileSystem:       cfg.FileSystem,
		FSLock:           &k.fsLock,
		Loader:           cfg.Loader,
		Trap:             k,
		Console:          cfg.Console,
		Scheduler:        cfg.Scheduler,
		NewPageDirectory: cfg.PageDirectory,
		Logger:           k.log,
	})
	if err != nil {
		return nil, err
	}
	k.procs = procs
	k.log = k.log.With(zap.String("component", "kernel"))
	return k, nil
}

// Run starts cmdline as the initial user process and waits for it to
// exit. It returns the process's exit status. If a process halts the
// machine first, Run returns ErrPoweredOff; if ctx ends first, it powers
// off and returns ctx.Err(). The kernel is powered off when Run returns.
func (k *Kernel) Run(ctx context.Context, cmdline string) (int, error) {
	k.log.Info("booting", zap.String("init", cmdline))

	status := -1
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer k.PowerOff()

		boot := k.procs.Boot()
		pid, err := k.procs.Execute(boot, cmdline)
		if err == nil {
			status, err = k.procs.Wait(boot, pid)
		}
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, process.ErrHalted):
			return ErrPoweredOff
		default:
			return err
		}
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			k.PowerOff()
			return ctx.Err()
		case <-k.off:
			return nil
		}
	})

	if err := g.Wait(); err != nil {
		return -1, err
	}
	k.log.Info("init exited", zap.Int("status", status))
	return status, nil
}

// PowerOff halts the machine. Threads blocked in exec or wait are
// released, user threads end at their next trap, and console input is
// closed. It is safe to call more than once.
func (k *Kernel) PowerOff() {
	k.offOnce.Do(func() {
		k.log.Info("powering off")
		k.procs.Shutdown()
		if c, ok := k.console.(io.Closer); ok {
			_ = c.Close()
		}
		close(k.off)
	})
}

// Halted reports whether the machine has been powered off.
func (k *Kernel) Halted() bool {
	select {
	case <-k.off:
		return true
	default:
		return false
	}
}

// Done returns a channel closed at power off.
func (k *Kernel) Done() <-chan struct{} {
	return k.off
}

// BootID identifies this boot in log records.
func (k *Kernel) BootID() uuid.UUID {
	return k.bootID
}

// Processes returns the live processes, the boot process included.
func (k *Kernel) Processes() []*process.Process {
	return k.procs.Processes()
}

// Manager returns the process manager.
func (k *Kernel) Manager() *process.Manager {
	return k.procs
}

// Scheduler returns the scheduler bookkeeping.
func (k *Kernel) Scheduler() process.Scheduler {
	return k.sched
}
