package annex

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrMergeFailed means the tool could not merge history at all
	// (unreachable peer, unrelated histories, local changes in the way).
	ErrMergeFailed = errors.New("merge failed")

	// ErrMergeConflict means the merge stopped on file-content conflicts
	// that the caller must preserve before committing.
	ErrMergeConflict = errors.New("merge stopped on conflicting paths")
)

// BackingStoreError is any failure of a git / git-annex invocation. It
// carries the command line and the tool's diagnostic output.
type BackingStoreError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *BackingStoreError) Error() string {
	msg := fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *BackingStoreError) Unwrap() error {
	return e.Err
}

// IsBackingStoreError reports whether err came from a failed tool invocation.
func IsBackingStoreError(err error) bool {
	var bse *BackingStoreError
	return errors.As(err, &bse)
}
