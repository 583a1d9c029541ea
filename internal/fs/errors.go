// Package fs is the kernel-facing side of sharebox: bazil.org/fuse nodes
// and handles that turn each filesystem call into resolver lookups and
// engine transitions.
//
// This file contains error types and error handling utilities.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"sharebox/internal/annex"
	"sharebox/internal/logging"
	"sharebox/internal/materialize"
	"sharebox/internal/state"
	"sharebox/internal/syncer"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")
)

// Error wraps filesystem errors with the operation and the affected
// virtual path.
type Error struct {
	Op   string // Operation that failed (e.g., "lookup", "readdir")
	Path string // Affected path
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewFSError creates a new Error with the given operation, path, and underlying error
func NewFSError(op string, path string, err error) *Error {
	return &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
}

// Common operation names for consistent logging and error reporting
const (
	OpLookup   = "lookup"   // Looking up a path
	OpReadDir  = "readdir"  // Reading directory contents
	OpOpen     = "open"     // Opening a file
	OpRead     = "read"     // Reading from a file
	OpWrite    = "write"    // Writing to a file
	OpCreate   = "create"   // Creating a new file
	OpMkdir    = "mkdir"    // Creating a new directory
	OpSymlink  = "symlink"  // Creating a symlink
	OpRemove   = "remove"   // Removing a file or directory
	OpRename   = "rename"   // Renaming/moving a file or directory
	OpSetattr  = "setattr"  // Setting file attributes
	OpGetattr  = "getattr"  // Getting file attributes
	OpFsync    = "fsync"    // Flushing a file to disk
	OpSetxattr = "setxattr" // Control channel writes
)

// ToFuseError translates an internal error into the errno the kernel
// reports to the caller.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	var fsErr *Error
	if errors.As(err, &fsErr) {
		errLogger.Debug("%v", fsErr)
	}

	var errno syscall.Errno
	switch {
	case errors.Is(err, state.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, syncer.ErrAlreadySyncing):
		return syscall.EBUSY
	case errors.Is(err, materialize.ErrUnavailableContent):
		return syscall.EIO
	case annex.IsBackingStoreError(err):
		return syscall.EIO
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return syscall.EINTR
	case errors.As(err, &errno):
		return errno
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	case errors.Is(err, os.ErrExist):
		return syscall.EEXIST
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}
