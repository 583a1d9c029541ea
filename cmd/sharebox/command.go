package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"sharebox/internal/fs"
	"sharebox/internal/syncer"

	"golang.org/x/sys/unix"
)

const pollInterval = 200 * time.Millisecond

// runCommand sends command to the sharebox mounted at mountPoint through
// its control attribute, waits for the cycle to finish and prints the
// resulting report.
func runCommand(out io.Writer, command, mountPoint string) error {
	if command != fs.CommandSync {
		return fmt.Errorf("unknown command %q (supported: %s)", command, fs.CommandSync)
	}

	logger.Debug("Requesting sync on %s", mountPoint)
	if err := unix.Setxattr(mountPoint, fs.XattrCommand, []byte(command), 0); err != nil {
		switch {
		case errors.Is(err, unix.EBUSY):
			return fmt.Errorf("a sync is already running on %s", mountPoint)
		case errors.Is(err, unix.ENOTSUP):
			return fmt.Errorf("%s is not a sharebox mount", mountPoint)
		}
		return fmt.Errorf("sync %s: %w", mountPoint, err)
	}

	if err := waitIdle(mountPoint, pollInterval); err != nil {
		return err
	}

	report, err := readXattr(mountPoint, fs.XattrReport)
	if err != nil {
		return fmt.Errorf("read sync report: %w", err)
	}
	_, err = io.WriteString(out, report)
	return err
}

// waitIdle polls the phase attribute until the scheduler is idle again.
func waitIdle(mountPoint string, interval time.Duration) error {
	for {
		phase, err := readXattr(mountPoint, fs.XattrPhase)
		if err != nil {
			return fmt.Errorf("read sync phase: %w", err)
		}
		if phase == syncer.Idle.String() {
			return nil
		}
		logger.Trace("Waiting for sync on %s (%s)", mountPoint, phase)
		time.Sleep(interval)
	}
}

func readXattr(path, name string) (string, error) {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil {
		return "", err
	}
	buf := make([]byte, size)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}
