package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"kernos/pkg/logger"
)

const defaultInit = "sh"

// DiskConfig selects a host directory as the file system.
type DiskConfig struct {
	Dir string `yaml:"dir"`
}

// FileConfig describes a file created before boot.
type FileConfig struct {
	Name    string `yaml:"name"`
	Size    int64  `yaml:"size"`
	Content string `yaml:"content"`
}

// ImageConfig describes an executable installed before boot.
type ImageConfig struct {
	Name      string `yaml:"name"`
	Program   string `yaml:"program"`
	DataPages int    `yaml:"data_pages"`
	Data      string `yaml:"data"`
}

// AppConfig holds the boot configuration.
type AppConfig struct {
	Logger logger.Config `yaml:"logger"`
	Init   string        `yaml:"init"`
	Disk   DiskConfig    `yaml:"disk"`
	Files  []FileConfig  `yaml:"files"`
	Images []ImageConfig `yaml:"images"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads path, or returns the defaults when path is empty.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Init == "" {
		cfg.Init = defaultInit
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "warn"
	}
	for i, img := range cfg.Images {
		if img.Name == "" {
			return nil, fmt.Errorf("image %d: name is required", i)
		}
		if img.Program == "" {
			cfg.Images[i].Program = img.Name
		}
	}
	for i, f := range cfg.Files {
		if f.Name == "" {
			return nil, fmt.Errorf("file %d: name is required", i)
		}
		if f.Size < int64(len(f.Content)) {
			cfg.Files[i].Size = int64(len(f.Content))
		}
	}
	return &cfg, nil
}
