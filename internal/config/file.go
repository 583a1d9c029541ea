package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML decoding; sync is given in seconds or as
// a duration string.
type fileConfig struct {
	GitDir        string   `yaml:"gitdir"`
	MountPoint    string   `yaml:"mountpoint"`
	Sync          string   `yaml:"sync"`
	GetAll        bool     `yaml:"getall"`
	Foreground    bool     `yaml:"foreground"`
	NotifyCmd     string   `yaml:"notifycmd"`
	ReportKeySize bool     `yaml:"reportkeysize"`
	AllowOther    bool     `yaml:"allowother"`
	Remotes       []Remote `yaml:"remotes"`
	Metrics       string   `yaml:"metrics"`
	LogLevel      string   `yaml:"loglevel"`
}

// LoadFile reads a YAML configuration file. Values from the file are the
// starting point; mount options and flags are applied on top by the caller.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	var interval time.Duration
	if fc.Sync != "" {
		interval, err = parseInterval(fc.Sync)
		if err != nil {
			return nil, fmt.Errorf("config %s: sync: %w", path, err)
		}
	}

	logger.Debug("Loaded configuration file %s", path)
	return &Config{
		GitDir:        fc.GitDir,
		MountPoint:    fc.MountPoint,
		SyncInterval:  interval,
		GetAll:        fc.GetAll,
		Foreground:    fc.Foreground,
		NotifyCmd:     fc.NotifyCmd,
		ReportKeySize: fc.ReportKeySize,
		AllowOther:    fc.AllowOther,
		Remotes:       fc.Remotes,
		MetricsAddr:   fc.Metrics,
		LogLevel:      fc.LogLevel,
	}, nil
}
