// kernos boots the kernel on the host terminal. The console is wired to
// stdin and stdout, and the initial process is a small shell unless the
// configuration names another command line.
//
// Usage:
//
//	kernos [-config kernos.yaml] [-init "cmdline"]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"kernos/pkg/console"
	"kernos/pkg/kernel"
	"kernos/pkg/loader"
	"kernos/pkg/logger"
	"kernos/pkg/vfs"
	"kernos/pkg/vfs/diskfs"
	"kernos/pkg/vfs/memfs"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	initCmd := flag.String("init", "", "Initial command line (overrides config)")
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *initCmd != "" {
		cfg.Init = *initCmd
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg, log)
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg *AppConfig, log *zap.Logger) int {
	fs, err := buildFileSystem(cfg)
	if err != nil {
		log.Error("prepare file system failed", zap.Error(err))
		return 1
	}

	l := loader.New(log)
	registerPrograms(l)

	con := console.New(os.Stdout)
	go func() {
		_, _ = io.Copy(con, os.Stdin)
		_ = con.Close()
	}()

	k, err := kernel.New(kernel.Config{
		FileSystem: fs,
		Console:    con,
		Loader:     l,
		Logger:     log,
	})
	if err != nil {
		log.Error("create kernel failed", zap.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := k.Run(ctx, cfg.Init)
	switch {
	case errors.Is(err, kernel.ErrPoweredOff):
		return 0
	case err != nil:
		log.Error("kernel stopped", zap.Error(err))
		return 1
	case status < 0:
		return 1
	default:
		return status & 0xff
	}
}

// buildFileSystem prepares the root file system with the configured files
// and images. Every built-in program is installed under its own name unless
// the configuration already provides that name. On a disk that was booted
// before, configured images are rewritten and existing files keep their
// contents.
func buildFileSystem(cfg *AppConfig) (vfs.FileSystem, error) {
	var fs vfs.FileSystem = memfs.New()
	if cfg.Disk.Dir != "" {
		if err := os.MkdirAll(cfg.Disk.Dir, 0o755); err != nil {
			return nil, err
		}
		fs = diskfs.New(cfg.Disk.Dir)
	}

	installed := make(map[string]bool)
	for _, img := range cfg.Images {
		image := loader.Image{
			Program:   img.Program,
			DataPages: img.DataPages,
			Data:      img.Data,
		}
		err := loader.Install(fs, img.Name, image)
		if fileExists(err) {
			if err := fs.Remove(img.Name); err != nil {
				return nil, fmt.Errorf("replace %s: %w", img.Name, err)
			}
			err = loader.Install(fs, img.Name, image)
		}
		if err != nil {
			return nil, err
		}
		installed[img.Name] = true
	}
	for name := range builtins {
		if installed[name] {
			continue
		}
		err := loader.Install(fs, name, loader.Image{Program: name})
		if err != nil && !fileExists(err) {
			return nil, err
		}
	}

	for _, f := range cfg.Files {
		err := fs.Create(f.Name, f.Size)
		if fileExists(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if f.Content == "" {
			continue
		}
		file, err := fs.Open(f.Name)
		if err != nil {
			return nil, err
		}
		_, err = file.Write([]byte(f.Content))
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return fs, nil
}

func fileExists(err error) bool {
	return errors.Is(err, diskfs.ErrFileExists) || errors.Is(err, memfs.ErrFileExists)
}
