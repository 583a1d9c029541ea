// Package annex wraps the external object-tracking tool (git + git-annex)
// behind a typed interface. All subprocess invocation and text parsing lives
// in this package.
package annex

import (
	"context"
)

//go:generate mockgen -destination=mock_annex/mock_tool.go -package=mock_annex sharebox/internal/annex Tool

// Tool is the collaborator that owns history, object storage and transfer.
// Paths are relative to the repository root, slash separated.
type Tool interface {
	// Init creates the repository (git init + git annex init) when missing.
	Init(ctx context.Context, description string) error
	// AddRemote registers a peer repository.
	AddRemote(ctx context.Context, name, location string) error
	// Remotes lists configured peers.
	Remotes(ctx context.Context) ([]string, error)

	// Track hands a fully written file to the store and commits it.
	Track(ctx context.Context, path, message string) error
	// Fetch retrieves the full content of a placeholder.
	Fetch(ctx context.Context, path string) error
	// Unlock turns a tracked object into a regular writable file.
	Unlock(ctx context.Context, path string) error
	// Remove drops path from tracking and commits. The working file may
	// already be gone.
	Remove(ctx context.Context, path, message string) error
	// Move records a rename of a tracked path and commits.
	Move(ctx context.Context, oldPath, newPath, message string) error
	// IsTracked reports whether path is known to the store.
	IsTracked(ctx context.Context, path string) (bool, error)
	// IsIgnored reports whether path is excluded from tracking.
	IsIgnored(ctx context.Context, path string) (bool, error)
	// ObjectIdentity returns the content identity (annex key or git blob id)
	// of the committed object at path. It is part of the collaborator
	// surface only: the sync cycle compares the identities that Unmerged
	// already reports per side.
	ObjectIdentity(ctx context.Context, path string) (string, error)

	// Head returns the current commit, or "" on an unborn branch.
	Head(ctx context.Context) (string, error)
	// MergeFromRemote fetches remote and merges its branch. A content
	// conflict leaves the merge in progress and returns ErrMergeConflict.
	MergeFromRemote(ctx context.Context, remote string) error
	// Changes lists paths that differ between two commits.
	Changes(ctx context.Context, from, to string) ([]Change, error)
	// Unmerged lists paths left conflicted by the last merge.
	Unmerged(ctx context.Context) ([]UnmergedPath, error)
	// Resolve stages the preservation of one conflicted path.
	Resolve(ctx context.Context, r Resolution) error
	// CommitMerge concludes an in-progress merge.
	CommitMerge(ctx context.Context, message string) error
	// AbortMerge abandons an in-progress merge, restoring the prior state.
	AbortMerge(ctx context.Context) error
}

// ChangeKind classifies a path in a diff between two commits.
type ChangeKind int

const (
	Added ChangeKind = iota
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Change is one path touched by a merge.
type Change struct {
	Kind ChangeKind
	Path string
}

// Side is one variant of a conflicted path. An empty ID means the side
// deleted the path.
type Side struct {
	Mode string
	ID   string
	// Key is the annex key when the blob is an annex link, "" otherwise.
	Key string
}

// Present reports whether this side still has the path.
func (s Side) Present() bool {
	return s.ID != ""
}

// UnmergedPath describes a conflicted path by its three index stages.
type UnmergedPath struct {
	Path   string
	Base   Side
	Ours   Side
	Theirs Side
}

// Keep selects which variant ends up at the conflicted path.
type Keep int

const (
	KeepOurs Keep = iota
	KeepTheirs
)

// Resolution preserves a conflicted path. Keep chooses the variant left at
// Path; when VariantPath is set, the other variant is written there too.
type Resolution struct {
	Path        string
	Keep        Keep
	VariantPath string
}
