package syncer

import (
	"fmt"
	"strings"
	"time"
)

// Result is the outcome of one cycle.
type Result string

const (
	ResultOK       Result = "ok"
	ResultConflict Result = "conflict"
	ResultFailed   Result = "failed"
)

// Report is what one cycle did. It lives for the cycle only; the scheduler
// keeps the last one as text for the manual trigger.
type Report struct {
	Started  time.Time
	Finished time.Time
	Remotes  []string

	Added        []string
	Removed      []string
	Modified     []string
	Placeholders []string
	Conflicts    []Conflict

	Result Result
	Err    error
}

func (r *Report) finish(now time.Time) {
	r.Finished = now
	switch {
	case r.Result == ResultFailed:
	case len(r.Conflicts) > 0:
		r.Result = ResultConflict
		r.Err = &ConflictError{Conflicts: r.Conflicts}
	default:
		r.Result = ResultOK
	}
}

// Duration returns how long the cycle ran.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", label, len(items))
	for _, item := range items {
		fmt.Fprintf(b, "  %s\n", item)
	}
}

// String renders the report for humans.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sync %s at %s (%s)\n", r.Result, r.Started.Format(time.RFC3339), r.Duration().Round(time.Millisecond))
	if len(r.Remotes) > 0 {
		fmt.Fprintf(&b, "remotes: %s\n", strings.Join(r.Remotes, ", "))
	}
	if r.Err != nil && r.Result == ResultFailed {
		fmt.Fprintf(&b, "error: %v\n", r.Err)
	}
	writeList(&b, "added", r.Added)
	writeList(&b, "removed", r.Removed)
	writeList(&b, "modified", r.Modified)
	writeList(&b, "placeholders", r.Placeholders)
	if len(r.Conflicts) > 0 {
		fmt.Fprintf(&b, "conflicts (%d):\n", len(r.Conflicts))
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "  %s\n", c)
		}
	}
	return b.String()
}
