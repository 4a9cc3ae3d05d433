// Package loader maps executable images into user address spaces.
//
// An image file is a YAML manifest naming a program registered with the
// Loader, plus optional initialized data:
//
//	program: echo
//	data_pages: 2
//	data: "hello"
//
// Load maps the data pages at usermem.CodeBase, copies the data there and
// returns the program's entry point.
package loader

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"kernos/pkg/process"
	"kernos/pkg/usermem"
	"kernos/pkg/vfs"
)

// Loader errors.
var (
	ErrBadImage       = errors.New("loader: bad image")
	ErrUnknownProgram = errors.New("loader: unknown program")
)

// MaxImagePages bounds the pages one image may map.
const MaxImagePages = 256

// Image is the manifest stored in an executable file.
type Image struct {
	Program   string `yaml:"program"`
	DataPages int    `yaml:"data_pages,omitempty"`
	Data      string `yaml:"data,omitempty"`
}

// pages returns how many pages the image maps. Every image maps at least
// one page, and enough to hold its data.
func (img *Image) pages() int {
	n := (len(img.Data) + usermem.PageSize - 1) / usermem.PageSize
	if img.DataPages > n {
		n = img.DataPages
	}
	if n == 0 {
		n = 1
	}
	return n
}

// Loader binds image manifests to registered programs. It implements
// process.Loader.
type Loader struct {
	mu       sync.RWMutex
	programs map[string]process.Entry
	log      *zap.Logger
}

// New creates a loader with no programs.
func New(log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		programs: make(map[string]process.Entry),
		log:      log.With(zap.String("component", "loader")),
	}
}

// Register makes entry loadable under name, replacing any earlier binding.
func (l *Loader) Register(name string, entry process.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[name] = entry
}

// Programs returns the registered program names in sorted order.
func (l *Loader) Programs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.programs))
	for name := range l.programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load implements process.Loader.
func (l *Loader) Load(f vfs.File, pd usermem.PageDirectory) (process.Entry, error) {
	raw, err := vfs.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	img, err := DecodeImage(raw)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	entry, ok := l.programs[img.Program]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, img.Program)
	}

	pages := img.pages()
	if pages > MaxImagePages {
		return nil, fmt.Errorf("%w: %d pages", ErrBadImage, pages)
	}
	for i := 0; i < pages; i++ {
		if err := pd.Map(usermem.CodeBase + usermem.Addr(i*usermem.PageSize)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
		}
	}
	if err := usermem.WriteBuffer(pd, usermem.CodeBase, []byte(img.Data)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}

	l.log.Debug("image loaded",
		zap.String("program", img.Program),
		zap.Int("pages", pages),
		zap.Int("data_bytes", len(img.Data)))
	return entry, nil
}

// DecodeImage parses an image manifest.
func DecodeImage(raw []byte) (*Image, error) {
	var img Image
	if err := yaml.Unmarshal(raw, &img); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadImage, err)
	}
	if img.Program == "" {
		return nil, fmt.Errorf("%w: no program", ErrBadImage)
	}
	if img.DataPages < 0 {
		return nil, fmt.Errorf("%w: negative data_pages", ErrBadImage)
	}
	return &img, nil
}

// EncodeImage renders an image manifest.
func EncodeImage(img Image) ([]byte, error) {
	return yaml.Marshal(&img)
}

// Install writes img to fs as the executable name.
func Install(fs vfs.FileSystem, name string, img Image) error {
	raw, err := EncodeImage(img)
	if err != nil {
		return err
	}
	if err := fs.Create(name, int64(len(raw))); err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	f, err := fs.Open(name)
	if err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	defer f.Close()
	if _, err := f.Write(raw); err != nil {
		return fmt.Errorf("install %s: %w", name, err)
	}
	return nil
}
