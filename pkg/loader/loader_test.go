package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kernos/pkg/process"
	"kernos/pkg/usermem"
	"kernos/pkg/vfs/memfs"
)

func TestLoadMapsData(t *testing.T) {
	fs := memfs.New()
	l := New(nil)
	called := false
	l.Register("hello", func(*process.UserContext) { called = true })

	require.NoError(t, Install(fs, "hello", Image{Program: "hello", DataPages: 2, Data: "greetings"}))

	f, err := fs.Open("hello")
	require.NoError(t, err)
	defer f.Close()

	mem := usermem.NewMemory()
	entry, err := l.Load(f, mem)
	require.NoError(t, err)
	entry(nil)
	assert.True(t, called)

	assert.Len(t, mem.Pages(), 2)
	got, err := usermem.ReadBuffer(mem, usermem.CodeBase, 9)
	require.NoError(t, err)
	assert.Equal(t, "greetings", string(got))
	assert.True(t, mem.IsMapped(usermem.CodeBase+usermem.PageSize))
	assert.False(t, mem.IsMapped(usermem.CodeBase+2*usermem.PageSize))
}

func TestLoadErrors(t *testing.T) {
	fs := memfs.New()
	l := New(nil)
	l.Register("known", func(*process.UserContext) {})

	require.NoError(t, fs.WriteFile("garbage", []byte("{{{not yaml")))
	require.NoError(t, fs.WriteFile("empty", []byte("data: x\n")))
	require.NoError(t, Install(fs, "unknown", Image{Program: "nobody"}))
	require.NoError(t, Install(fs, "huge", Image{Program: "known", DataPages: MaxImagePages + 1}))

	tests := []struct {
		file string
		want error
	}{
		{"garbage", ErrBadImage},
		{"empty", ErrBadImage},
		{"unknown", ErrUnknownProgram},
		{"huge", ErrBadImage},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			f, err := fs.Open(tt.file)
			require.NoError(t, err)
			defer f.Close()

			_, err = l.Load(f, usermem.NewMemory())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncodeDecodeImage(t *testing.T) {
	raw, err := EncodeImage(Image{Program: "cat", Data: "x"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "program: cat")

	img, err := DecodeImage(raw)
	require.NoError(t, err)
	assert.Equal(t, "cat", img.Program)
	assert.Equal(t, 1, img.pages())
}

func TestPrograms(t *testing.T) {
	l := New(nil)
	l.Register("b", func(*process.UserContext) {})
	l.Register("a", func(*process.UserContext) {})
	assert.Equal(t, []string{"a", "b"}, l.Programs())
}
