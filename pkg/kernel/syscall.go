package kernel

import (
	"errors"
	"runtime"

	"go.uber.org/zap"

	"kernos/pkg/process"
	"kernos/pkg/sysno"
	"kernos/pkg/usermem"
)

// failed is -1 as seen in EAX.
const failed = ^uint32(0)

type sysentry struct {
	args int
	void bool
	impl func(k *Kernel, t *process.Thread, args []uint32) (uint32, error)
}

var sysent [sysno.Count]sysentry

func init() {
	sysent = [sysno.Count]sysentry{
		sysno.Halt:     {0, true, sysHalt},
		sysno.Exit:     {1, true, sysExit},
		sysno.Exec:     {1, false, sysExec},
		sysno.Wait:     {1, false, sysWait},
		sysno.Create:   {2, false, sysCreate},
		sysno.Remove:   {1, false, sysRemove},
		sysno.Open:     {1, false, sysOpen},
		sysno.Filesize: {1, false, sysFilesize},
		sysno.Read:     {3, false, sysRead},
		sysno.Write:    {3, false, sysWrite},
		sysno.Seek:     {2, true, sysSeek},
		sysno.Tell:     {1, false, sysTell},
		sysno.Close:    {1, true, sysClose},
		sysno.Practice: {1, false, sysPractice},
	}
}

// Syscall implements process.TrapHandler. The call number at f.ESP is
// validated first, then the argument words, then whatever the arguments
// point at. A bad user address kills the caller with status -1.
func (k *Kernel) Syscall(t *process.Thread, f *process.IntrFrame) {
	pd := t.Process().PageDir()

	words, err := usermem.ReadArgs(pd, f.ESP, 1)
	if err != nil {
		k.procs.Kill(t, err)
	}
	nr := sysno.Number(words[0])
	if nr >= sysno.Count {
		k.log.Debug("unknown system call",
			zap.Int32("tid", int32(t.TID())),
			zap.Uint32("nr", uint32(nr)))
		return
	}

	ent := &sysent[nr]
	args, err := usermem.ReadArgs(pd, f.ESP+usermem.WordSize, ent.args)
	if err != nil {
		k.procs.Kill(t, err)
	}

	ret, err := ent.impl(k, t, args)
	switch {
	case err == nil:
	case errors.Is(err, usermem.ErrBadAddress):
		k.procs.Kill(t, err)
	case errors.Is(err, process.ErrHalted):
		runtime.Goexit()
	default:
		k.log.Debug("system call failed",
			zap.Int32("tid", int32(t.TID())),
			zap.Stringer("call", nr),
			zap.Error(err))
	}

	if !ent.void {
		f.EAX = ret
	}
	k.log.Debug("system call",
		zap.Int32("tid", int32(t.TID())),
		zap.Stringer("call", nr),
		zap.Uint32s("args", args),
		zap.Uint32("ret", ret))
}

func sysHalt(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	k.log.Info("halt requested", zap.Int32("tid", int32(t.TID())))
	k.PowerOff()
	runtime.Goexit()
	return 0, nil
}

func sysExit(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	k.procs.Exit(t, int(int32(args[0])))
	return 0, nil
}

func sysExec(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	cmdline, err := usermem.ReadString(t.Process().PageDir(), usermem.Addr(args[0]))
	if err != nil {
		return failed, err
	}
	pid, err := k.procs.Execute(t, cmdline)
	if err != nil {
		return failed, err
	}
	return uint32(pid), nil
}

func sysWait(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	status, err := k.procs.Wait(t, process.PID(int32(args[0])))
	if err != nil {
		return failed, err
	}
	return uint32(int32(status)), nil
}

func sysPractice(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	return uint32(int32(args[0]) + 1), nil
}
