package memfs

import (
	"errors"
	"io"
	"testing"

	vfs "kernos/pkg/vfs"
)

func TestNew(t *testing.T) {
	fs := New()
	if fs == nil {
		t.Fatal("New() returned nil")
	}
	if len(fs.Names()) != 0 {
		t.Errorf("Names() = %v, want empty", fs.Names())
	}
}

func TestCreate(t *testing.T) {
	fs := New()

	tests := []struct {
		name    string
		file    string
		size    int64
		wantErr error
	}{
		{"valid", "a.txt", 10, nil},
		{"zero size", "empty", 0, nil},
		{"duplicate", "a.txt", 1, ErrFileExists},
		{"empty name", "", 1, vfs.ErrInvalidName},
		{"slash", "dir/x", 1, vfs.ErrInvalidName},
		{"too long", "abcdefghijklmno", 1, vfs.ErrNameTooLong},
		{"negative size", "neg", -1, ErrInvalidSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fs.Create(tt.file, tt.size)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateZeroFills(t *testing.T) {
	fs := New()
	if err := fs.Create("zeros", 8); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	data, err := fs.ReadFile("zeros")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if len(data) != 8 {
		t.Fatalf("len = %d, want 8", len(data))
	}
	for i, b := range data {
		if b != 0 {
			t.Errorf("data[%d] = %d, want 0", i, b)
		}
	}
}

func TestReadWrite(t *testing.T) {
	fs := New()
	if err := fs.Create("test.txt", 13); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	file, err := fs.Open("test.txt")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	testData := []byte("Hello, World!")
	n, err := file.Write(testData)
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if n != len(testData) {
		t.Errorf("Write() wrote %d bytes, expected %d", n, len(testData))
	}
	file.Close()

	file, err = fs.Open("test.txt")
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer file.Close()

	buf := make([]byte, 100)
	n, err = file.Read(buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if string(buf[:n]) != string(testData) {
		t.Errorf("Read() = %q, want %q", buf[:n], testData)
	}

	if _, err := file.Read(buf); err != io.EOF {
		t.Errorf("Read() at EOF error = %v, want io.EOF", err)
	}
}

func TestWriteStopsAtEOF(t *testing.T) {
	fs := New()
	if err := fs.Create("small", 4); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	file, _ := fs.Open("small")
	defer file.Close()

	n, err := file.Write([]byte("abcdefgh"))
	if err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Write() = %d, want 4", n)
	}
	if file.Length() != 4 {
		t.Errorf("Length() = %d, want 4", file.Length())
	}

	n, _ = file.Write([]byte("x"))
	if n != 0 {
		t.Errorf("Write() past EOF = %d, want 0", n)
	}
}

func TestSeekTell(t *testing.T) {
	fs := New()
	if err := fs.WriteFile("seek", []byte("0123456789")); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	file, _ := fs.Open("seek")
	defer file.Close()

	file.Seek(6)
	if file.Tell() != 6 {
		t.Errorf("Tell() = %d, want 6", file.Tell())
	}
	buf := make([]byte, 2)
	n, _ := file.Read(buf)
	if string(buf[:n]) != "67" {
		t.Errorf("Read() after Seek = %q, want 67", buf[:n])
	}
	if file.Tell() != 8 {
		t.Errorf("Tell() = %d, want 8", file.Tell())
	}

	file.Seek(100)
	if _, err := file.Read(buf); err != io.EOF {
		t.Errorf("Read() past EOF error = %v, want io.EOF", err)
	}
}

func TestIndependentHandles(t *testing.T) {
	fs := New()
	_ = fs.WriteFile("shared", []byte("abcdef"))

	a, _ := fs.Open("shared")
	b, _ := fs.Open("shared")
	defer a.Close()
	defer b.Close()

	a.Seek(3)
	buf := make([]byte, 3)
	n, _ := b.Read(buf)
	if string(buf[:n]) != "abc" {
		t.Errorf("second handle read %q, want abc", buf[:n])
	}
	if fs.OpenCount("shared") != 2 {
		t.Errorf("OpenCount() = %d, want 2", fs.OpenCount("shared"))
	}
}

func TestDenyWrite(t *testing.T) {
	fs := New()
	_ = fs.WriteFile("prog", []byte("image"))

	exec, _ := fs.Open("prog")
	other, _ := fs.Open("prog")
	defer other.Close()

	exec.DenyWrite()
	exec.DenyWrite()
	if _, err := other.Write([]byte("X")); !errors.Is(err, vfs.ErrWriteDenied) {
		t.Fatalf("Write() error = %v, want ErrWriteDenied", err)
	}

	exec.AllowWrite()
	if n, err := other.Write([]byte("X")); err != nil || n != 1 {
		t.Fatalf("Write() after AllowWrite = %d, %v", n, err)
	}

	exec.DenyWrite()
	exec.Close()
	if n, err := other.Write([]byte("Y")); err != nil || n != 1 {
		t.Fatalf("Write() after Close = %d, %v; close must release the denial", n, err)
	}
}

func TestRemoveKeepsOpenHandles(t *testing.T) {
	fs := New()
	_ = fs.WriteFile("gone", []byte("still here"))

	file, _ := fs.Open("gone")
	if err := fs.Remove("gone"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := fs.Open("gone"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Open() after Remove error = %v, want ErrFileNotFound", err)
	}
	if err := fs.Remove("gone"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("second Remove() error = %v, want ErrFileNotFound", err)
	}

	data, err := vfs.ReadAll(file)
	if err != nil {
		t.Fatalf("ReadAll() failed: %v", err)
	}
	if string(data) != "still here" {
		t.Errorf("ReadAll() = %q", data)
	}
}

func TestClosedFile(t *testing.T) {
	fs := New()
	_ = fs.Create("c", 4)
	file, _ := fs.Open("c")
	file.Close()

	if _, err := file.Read(make([]byte, 1)); !errors.Is(err, vfs.ErrClosedFile) {
		t.Errorf("Read() error = %v, want ErrClosedFile", err)
	}
	if _, err := file.Write([]byte("x")); !errors.Is(err, vfs.ErrClosedFile) {
		t.Errorf("Write() error = %v, want ErrClosedFile", err)
	}
	if err := file.Close(); !errors.Is(err, vfs.ErrClosedFile) {
		t.Errorf("second Close() error = %v, want ErrClosedFile", err)
	}
	if fs.OpenCount("c") != 0 {
		t.Errorf("OpenCount() = %d, want 0", fs.OpenCount("c"))
	}
}
