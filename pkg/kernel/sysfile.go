package kernel

import (
	"errors"
	"io"

	"kernos/pkg/process"
	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
)

// errConsoleFD is returned for file operations on descriptors 0 and 1
// that the console does not support.
var errConsoleFD = errors.New("operation not supported on console descriptor")

func argFD(w uint32) int {
	return int(int32(w))
}

func boolWord(ok bool) uint32 {
	if ok {
		return 1
	}
	return 0
}

func sysCreate(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	name, err := usermem.ReadString(t.Process().PageDir(), usermem.Addr(args[0]))
	if err != nil {
		return 0, err
	}

	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	err = k.fs.Create(name, int64(args[1]))
	return boolWord(err == nil), err
}

func sysRemove(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	name, err := usermem.ReadString(t.Process().PageDir(), usermem.Addr(args[0]))
	if err != nil {
		return 0, err
	}

	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	err = k.fs.Remove(name)
	return boolWord(err == nil), err
}

func sysOpen(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	p := t.Process()
	name, err := usermem.ReadString(p.PageDir(), usermem.Addr(args[0]))
	if err != nil {
		return failed, err
	}

	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := k.fs.Open(name)
	if err != nil {
		return failed, err
	}
	// A sibling thread may have torn the process down while this call
	// waited for the lock. Its table has already been closed.
	if p.Exiting() {
		_ = f.Close()
		return failed, process.ErrExiting
	}
	fd, err := p.Files().Install(f)
	if err != nil {
		_ = f.Close()
		return failed, err
	}
	return uint32(fd), nil
}

func sysFilesize(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := t.Process().Files().Get(argFD(args[0]))
	if err != nil {
		return failed, err
	}
	return uint32(f.Length()), nil
}

func sysRead(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	pd := t.Process().PageDir()
	fd, buf, size := argFD(args[0]), usermem.Addr(args[1]), args[2]
	if err := usermem.ValidateBuffer(pd, buf, size); err != nil {
		return failed, err
	}

	switch fd {
	case process.StdinFD:
		n := uint32(0)
		for ; n < size; n++ {
			b, err := k.console.ReadByte()
			if err != nil {
				break
			}
			pd.StoreByte(buf+usermem.Addr(n), b)
		}
		return n, nil
	case process.StdoutFD:
		return failed, errConsoleFD
	}

	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := t.Process().Files().Get(fd)
	if err != nil {
		return failed, err
	}
	data := make([]byte, size)
	n, err := io.ReadFull(f, data)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return failed, err
	}
	if err := usermem.WriteBuffer(pd, buf, data[:n]); err != nil {
		return failed, err
	}
	return uint32(n), nil
}

func sysWrite(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	fd, buf, size := argFD(args[0]), usermem.Addr(args[1]), args[2]
	data, err := usermem.ReadBuffer(t.Process().PageDir(), buf, size)
	if err != nil {
		return failed, err
	}

	switch fd {
	case process.StdoutFD:
		k.console.WriteBytes(data)
		return size, nil
	case process.StdinFD:
		return failed, errConsoleFD
	}

	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := t.Process().Files().Get(fd)
	if err != nil {
		return failed, err
	}
	n, err := f.Write(data)
	if errors.Is(err, vfs.ErrWriteDenied) {
		return 0, nil
	}
	if err != nil {
		return failed, err
	}
	return uint32(n), nil
}

func sysSeek(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := t.Process().Files().Get(argFD(args[0]))
	if err != nil {
		return 0, err
	}
	f.Seek(int64(args[1]))
	return 0, nil
}

func sysTell(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := t.Process().Files().Get(argFD(args[0]))
	if err != nil {
		return failed, err
	}
	return uint32(f.Tell()), nil
}

func sysClose(k *Kernel, t *process.Thread, args []uint32) (uint32, error) {
	k.fsLock.Lock()
	defer k.fsLock.Unlock()
	f, err := t.Process().Files().Remove(argFD(args[0]))
	if err != nil {
		return 0, err
	}
	return 0, f.Close()
}
