package diskfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	vfs "kernos/pkg/vfs"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	fs := New(tmpDir)

	if fs == nil {
		t.Fatal("New() returned nil")
	}
	if fs.root != tmpDir {
		t.Errorf("root is %q, expected %q", fs.root, tmpDir)
	}
}

func TestCreateAndOpen(t *testing.T) {
	tmpDir := t.TempDir()
	fs := New(tmpDir)

	if err := fs.Create("test.txt", 16); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpDir, "test.txt"))
	if err != nil {
		t.Fatalf("file should exist on disk: %v", err)
	}
	if info.Size() != 16 {
		t.Errorf("size on disk = %d, want 16", info.Size())
	}

	if err := fs.Create("test.txt", 1); !errors.Is(err, ErrFileExists) {
		t.Errorf("duplicate Create() error = %v, want ErrFileExists", err)
	}

	file, err := fs.Open("test.txt")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer file.Close()

	if file.Length() != 16 {
		t.Errorf("Length() = %d, want 16", file.Length())
	}
}

func TestOpenMissing(t *testing.T) {
	fs := New(t.TempDir())
	if _, err := fs.Open("missing"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Open() error = %v, want ErrFileNotFound", err)
	}
	if err := fs.Remove("missing"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Remove() error = %v, want ErrFileNotFound", err)
	}
	if _, err := fs.Open("../etc"); !errors.Is(err, vfs.ErrInvalidName) {
		t.Errorf("Open() error = %v, want ErrInvalidName", err)
	}
}

func TestReadWrite(t *testing.T) {
	fs := New(t.TempDir())
	if err := fs.Create("data", 5); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	file, _ := fs.Open("data")
	defer file.Close()

	n, err := file.Write([]byte("hello world"))
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Write() = %d, want 5 (writes stop at EOF)", n)
	}

	file.Seek(1)
	buf := make([]byte, 10)
	n, err = file.Read(buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if string(buf[:n]) != "ello" {
		t.Errorf("Read() = %q, want ello", buf[:n])
	}
	if file.Tell() != 5 {
		t.Errorf("Tell() = %d, want 5", file.Tell())
	}
	if _, err := file.Read(buf); err != io.EOF {
		t.Errorf("Read() at EOF error = %v, want io.EOF", err)
	}
}

func TestDenyWriteSharedAcrossHandles(t *testing.T) {
	fs := New(t.TempDir())
	_ = fs.Create("prog", 4)

	exec, _ := fs.Open("prog")
	other, _ := fs.Open("prog")
	defer other.Close()

	exec.DenyWrite()
	if _, err := other.Write([]byte("x")); !errors.Is(err, vfs.ErrWriteDenied) {
		t.Fatalf("Write() error = %v, want ErrWriteDenied", err)
	}
	exec.Close()
	if n, err := other.Write([]byte("x")); err != nil || n != 1 {
		t.Fatalf("Write() after Close = %d, %v", n, err)
	}
}

func TestRemove(t *testing.T) {
	tmpDir := t.TempDir()
	fs := New(tmpDir)
	_ = fs.Create("old", 0)

	if err := fs.Remove("old"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "old")); !os.IsNotExist(err) {
		t.Error("file should be gone from disk")
	}
}
