package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kernos/pkg/console"
	"kernos/pkg/kernel"
	"kernos/pkg/loader"
	"kernos/pkg/vfs"
)

const testConfig = `
logger:
  level: debug
init: sh
files:
  - name: notes
    content: "abc\n"
  - name: scratch
    size: 16
images:
  - name: say
    program: echo
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := loadAppConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultInit, cfg.Init)
	assert.Equal(t, "warn", cfg.Logger.Level)
}

func TestLoadAppConfig(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	require.Len(t, cfg.Files, 2)
	assert.Equal(t, int64(4), cfg.Files[0].Size)
	assert.Equal(t, int64(16), cfg.Files[1].Size)
	require.Len(t, cfg.Images, 1)
	assert.Equal(t, "echo", cfg.Images[0].Program)

	_, err = loadAppConfig(writeConfig(t, "images:\n  - program: echo\n"))
	assert.Error(t, err)
	_, err = loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestImageDataPagesKey(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, "images:\n  - name: big\n    data_pages: 3\n"))
	require.NoError(t, err)
	require.Len(t, cfg.Images, 1)
	assert.Equal(t, 3, cfg.Images[0].DataPages)
}

func readFile(t *testing.T, fs vfs.FileSystem, name string) []byte {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := vfs.ReadAll(f)
	require.NoError(t, err)
	return data
}

func TestRebootFromSameDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := &AppConfig{
		Disk:   DiskConfig{Dir: dir},
		Images: []ImageConfig{{Name: "greet", Program: "echo"}},
		Files:  []FileConfig{{Name: "notes", Size: 4, Content: "abc\n"}},
	}
	fs, err := buildFileSystem(cfg)
	require.NoError(t, err)

	// Data written while running survives the reboot.
	f, err := fs.Open("notes")
	require.NoError(t, err)
	_, err = f.Write([]byte("xyz"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg.Images[0].Program = "cat"
	fs, err = buildFileSystem(cfg)
	require.NoError(t, err, "second boot on the same disk")

	assert.Equal(t, []byte("xyz\n"), readFile(t, fs, "notes"))
	img, err := loader.DecodeImage(readFile(t, fs, "greet"))
	require.NoError(t, err)
	assert.Equal(t, "cat", img.Program)
	_, err = loader.DecodeImage(readFile(t, fs, "sh"))
	assert.NoError(t, err)
}

func TestShellSession(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, testConfig))
	require.NoError(t, err)
	fs, err := buildFileSystem(cfg)
	require.NoError(t, err)

	l := loader.New(nil)
	registerPrograms(l)
	con := console.New(nil)
	con.Feed([]byte("echo hi there\nsay aliased\ncat notes\ncp notes copy\ncat copy\nnosuch\nrm copy\ncat copy\nexit 3\n"))

	k, err := kernel.New(kernel.Config{FileSystem: fs, Console: con, Loader: l})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status, err := k.Run(ctx, cfg.Init)
	require.NoError(t, err)
	assert.Equal(t, 3, status)

	out := con.Output()
	assert.Contains(t, out, "$ hi there\necho: exit(0)\n")
	assert.Contains(t, out, "$ aliased\nsay: exit(0)\n")
	assert.Contains(t, out, "$ abc\ncat: exit(0)\n")
	assert.Contains(t, out, "cp: exit(0)\n$ abc\ncat: exit(0)\n")
	assert.Contains(t, out, "load: nosuch: open failed\nsh: nosuch: exec failed\n")
	assert.Contains(t, out, "rm: exit(0)\n$ cat: copy: cannot open\ncat: exit(1)\nsh: [1]\n")
	assert.True(t, len(out) > 0 && out[len(out)-len("sh: exit(3)\n"):] == "sh: exit(3)\n", out)
}

func TestShellEndsAtEndOfInput(t *testing.T) {
	fs, err := buildFileSystem(&AppConfig{})
	require.NoError(t, err)
	l := loader.New(nil)
	registerPrograms(l)
	con := console.New(nil)
	con.Feed([]byte("echo last"))
	require.NoError(t, con.Close())

	k, err := kernel.New(kernel.Config{FileSystem: fs, Console: con, Loader: l})
	require.NoError(t, err)
	status, err := k.Run(context.Background(), "sh")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	assert.Contains(t, con.Output(), "last\necho: exit(0)\n")
}

func TestHaltProgram(t *testing.T) {
	fs, err := buildFileSystem(&AppConfig{})
	require.NoError(t, err)
	l := loader.New(nil)
	registerPrograms(l)

	k, err := kernel.New(kernel.Config{FileSystem: fs, Loader: l})
	require.NoError(t, err)
	_, err = k.Run(context.Background(), "halt")
	assert.ErrorIs(t, err, kernel.ErrPoweredOff)
}
