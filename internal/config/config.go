// Package config builds the immutable mount configuration shared by every
// sharebox component.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sharebox/internal/logging"
)

var (
	logger = logging.GetLogger().WithPrefix("config")

	// ErrMissingGitDir is returned when no backing directory was configured.
	ErrMissingGitDir = errors.New("gitdir is required")
)

// Remote is a peer repository the backing directory synchronises with.
type Remote struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// Config is the mount context. It is built once at startup and must not be
// modified afterwards; components keep a pointer to it.
type Config struct {
	// GitDir is the absolute path of the backing directory.
	GitDir string
	// MountPoint is where the overlay is mounted.
	MountPoint string
	// SyncInterval is the period of automatic syncs, 0 for manual only.
	SyncInterval time.Duration
	// GetAll fetches newly synced files eagerly instead of leaving placeholders.
	GetAll bool
	// Foreground keeps the process attached to the terminal.
	Foreground bool
	// NotifyCmd is run on state-changing events; {path} and {event} are substituted.
	NotifyCmd string
	// ReportKeySize makes placeholders report the size recorded in their
	// annex key instead of zero.
	ReportKeySize bool
	// AllowOther passes allow_other to the kernel.
	AllowOther bool
	// Remotes are added to the backing repository at mount time when missing.
	Remotes []Remote
	// MetricsAddr serves prometheus metrics when non-empty.
	MetricsAddr string
	// LogLevel is one of error, warn, info, debug, trace.
	LogLevel string
}

// Validate checks the configuration and normalises paths to absolute form.
func (c *Config) Validate() error {
	if c.GitDir == "" {
		return ErrMissingGitDir
	}
	abs, err := filepath.Abs(c.GitDir)
	if err != nil {
		return fmt.Errorf("resolve gitdir %q: %w", c.GitDir, err)
	}
	c.GitDir = abs

	info, err := os.Stat(c.GitDir)
	if err != nil {
		return fmt.Errorf("gitdir %q: %w", c.GitDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("gitdir %q is not a directory", c.GitDir)
	}

	if c.MountPoint != "" {
		mp, err := filepath.Abs(c.MountPoint)
		if err != nil {
			return fmt.Errorf("resolve mount point %q: %w", c.MountPoint, err)
		}
		c.MountPoint = mp
		if strings.HasPrefix(c.GitDir+string(filepath.Separator), mp+string(filepath.Separator)) {
			return fmt.Errorf("gitdir %q must not live inside the mount point %q", c.GitDir, mp)
		}
	}

	if c.SyncInterval < 0 {
		return fmt.Errorf("sync interval must not be negative: %v", c.SyncInterval)
	}

	if c.LogLevel != "" {
		if _, err := logging.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(c.Remotes))
	for _, r := range c.Remotes {
		if r.Name == "" || r.Location == "" {
			return fmt.Errorf("remote needs both name and location: %+v", r)
		}
		if seen[r.Name] {
			return fmt.Errorf("remote %q configured twice", r.Name)
		}
		seen[r.Name] = true
	}

	logger.Debug("Validated configuration: gitdir=%s mount=%s sync=%v getall=%v",
		c.GitDir, c.MountPoint, c.SyncInterval, c.GetAll)
	return nil
}

// SyncEnabled reports whether periodic syncing is configured.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0
}
