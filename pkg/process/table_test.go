package process

import (
	"errors"
	"testing"

	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
	"kernos/pkg/vfs/memfs"
)

// TestThreadStateTransitions tests valid and invalid state transitions.
func TestThreadStateTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    ThreadState
		to      ThreadState
		wantErr bool
	}{
		{"Loading to Running", StateLoading, StateRunning, false},
		{"Loading to Dead", StateLoading, StateDead, false},
		{"Running to Blocked", StateRunning, StateBlocked, false},
		{"Blocked to Running", StateBlocked, StateRunning, false},
		{"Running to Dying", StateRunning, StateDying, false},
		{"Dying to Dead", StateDying, StateDead, false},
		{"Dead to Running", StateDead, StateRunning, true},
		{"Loading to Blocked", StateLoading, StateBlocked, true},
		{"Dying to Running", StateDying, StateRunning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newThread(1, "test")
			th.state = tt.from
			err := th.TransitionTo(tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("TransitionTo() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("TransitionTo() error = %v, want %v", err, ErrInvalidTransition)
			}
		})
	}
}

func TestThreadFinish(t *testing.T) {
	th := newThread(1, "test")
	if !th.IsAlive() {
		t.Fatal("new thread is not alive")
	}
	th.finish()
	th.finish()
	th.Join()
	if th.IsAlive() {
		t.Error("finished thread is alive")
	}
}

// TestActiveList tests scheduler bookkeeping.
func TestActiveList(t *testing.T) {
	l := NewActiveList()
	a, b, c := newThread(1, "a"), newThread(2, "b"), newThread(3, "c")
	for _, th := range []*Thread{a, b, c, a} {
		if err := l.Schedule(th); err != nil {
			t.Fatalf("Schedule() failed: %v", err)
		}
	}
	if l.Len() != 3 {
		t.Errorf("Len() = %d, want 3", l.Len())
	}

	if err := l.Remove(2); err != nil {
		t.Fatalf("Remove(2) failed: %v", err)
	}
	if l.Contains(2) {
		t.Error("Contains(2) after Remove")
	}
	if err := l.Remove(2); !errors.Is(err, ErrThreadNotFound) {
		t.Errorf("Remove(2) again error = %v, want %v", err, ErrThreadNotFound)
	}

	threads := l.Threads()
	if len(threads) != 2 || threads[0] != a || threads[1] != c {
		t.Errorf("Threads() order wrong: %v", threads)
	}
	if err := l.Remove(3); err != nil {
		t.Errorf("Remove(3) after reindex failed: %v", err)
	}
}

// TestFileTable tests descriptor allocation.
func TestFileTable(t *testing.T) {
	fs := memfs.New()
	if err := fs.Create("f", 4); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	open := func() vfs.File {
		f, err := fs.Open("f")
		if err != nil {
			t.Fatalf("Open() failed: %v", err)
		}
		return f
	}

	var ft FileTable
	for want := FirstFD; want < MaxFD; want++ {
		fd, err := ft.Install(open())
		if err != nil {
			t.Fatalf("Install() #%d failed: %v", want, err)
		}
		if fd != want {
			t.Fatalf("Install() = %d, want %d", fd, want)
		}
	}
	if _, err := ft.Install(open()); !errors.Is(err, ErrTableFull) {
		t.Errorf("Install() on full table error = %v, want %v", err, ErrTableFull)
	}

	f, err := ft.Remove(10)
	if err != nil {
		t.Fatalf("Remove(10) failed: %v", err)
	}
	_ = f.Close()
	if _, err := ft.Get(10); !errors.Is(err, ErrBadDescriptor) {
		t.Errorf("Get(10) after Remove error = %v, want %v", err, ErrBadDescriptor)
	}
	if fd, _ := ft.Install(open()); fd != 10 {
		t.Errorf("Install() reused %d, want 10", fd)
	}

	for _, fd := range []int{-1, 0, 1, 2, MaxFD} {
		if _, err := ft.Get(fd); !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("Get(%d) error = %v, want %v", fd, err, ErrBadDescriptor)
		}
	}

	if n := ft.CloseAll(); n != MaxFD-FirstFD {
		t.Errorf("CloseAll() = %d, want %d", n, MaxFD-FirstFD)
	}
	if ft.Len() != 0 || fs.OpenCount("f") != 0 {
		t.Errorf("after CloseAll: Len() = %d, OpenCount = %d", ft.Len(), fs.OpenCount("f"))
	}
}

// TestSetupStack tests the initial stack layout.
func TestSetupStack(t *testing.T) {
	mem := usermem.NewMemory()
	esp, err := setupStack(mem, []string{"echo", "x"})
	if err != nil {
		t.Fatalf("setupStack() failed: %v", err)
	}
	if esp%usermem.WordSize != 0 {
		t.Errorf("esp %#x is not word aligned", esp)
	}

	words, err := usermem.ReadArgs(mem, esp, 3)
	if err != nil {
		t.Fatalf("ReadArgs() failed: %v", err)
	}
	if words[0] != 0 || words[1] != 2 {
		t.Errorf("return address, argc = %d, %d, want 0, 2", words[0], words[1])
	}
	if usermem.Addr(words[2]) != esp+3*usermem.WordSize {
		t.Errorf("argv = %#x, want %#x", words[2], esp+3*usermem.WordSize)
	}

	ptrs, _ := usermem.ReadArgs(mem, usermem.Addr(words[2]), 3)
	for i, want := range []string{"echo", "x"} {
		s, err := usermem.ReadString(mem, usermem.Addr(ptrs[i]))
		if err != nil || s != want {
			t.Errorf("argv[%d] = %q, %v, want %q", i, s, err, want)
		}
	}
	if ptrs[2] != 0 {
		t.Errorf("argv[2] = %#x, want 0", ptrs[2])
	}
}

func TestSetupStackTooLong(t *testing.T) {
	long := make([]byte, usermem.PageSize)
	for i := range long {
		long[i] = 'a'
	}
	_, err := setupStack(usermem.NewMemory(), []string{string(long)})
	if !errors.Is(err, ErrArgsTooLong) {
		t.Errorf("setupStack() error = %v, want %v", err, ErrArgsTooLong)
	}
}
