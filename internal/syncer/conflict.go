package syncer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"sharebox/internal/annex"
	"sharebox/internal/metrics"
)

// ErrConflictDetected is reported when a merge found paths changed on both
// sides. Every variant is kept on disk; nothing is resolved automatically.
var ErrConflictDetected = errors.New("conflict detected")

// ConflictKind classifies a conflicted path.
type ConflictKind int

const (
	// ModifyModify means both sides changed the content.
	ModifyModify ConflictKind = iota
	// ModifyDelete means one side changed the file and the other deleted it.
	ModifyDelete
)

func (k ConflictKind) String() string {
	switch k {
	case ModifyModify:
		return "modify/modify"
	case ModifyDelete:
		return "modify/delete"
	}
	return "unknown"
}

// Conflict describes one preserved conflict. Variant is where the remote
// variant was written for modify/modify conflicts.
type Conflict struct {
	Path    string
	Kind    ConflictKind
	Variant string
	Kept    annex.Keep
}

func (c Conflict) String() string {
	s := fmt.Sprintf("%s %s", c.Kind, c.Path)
	if c.Variant != "" {
		s += " (other variant at " + c.Variant + ")"
	}
	return s
}

// ConflictError lists the paths a sync left conflicted.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	paths := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		paths[i] = c.Path
	}
	return fmt.Sprintf("%v: %s", ErrConflictDetected, strings.Join(paths, ", "))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflictDetected
}

// identity is what two sides are compared by: the annex key for annexed
// content, the git blob id otherwise.
func identity(s annex.Side) string {
	if s.Key != "" {
		return s.Key
	}
	return s.ID
}

// shortID returns the first 8 characters of the content hash inside an
// identity. For annex keys that is the part after "--", without extension.
func shortID(id string) string {
	if _, hash, ok := strings.Cut(id, "--"); ok {
		id = hash
	}
	if i := strings.IndexByte(id, '.'); i > 0 {
		id = id[:i]
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// VariantName returns where the other variant of p is kept:
// "dir/name.variant-<8 chars of identity><ext>".
func VariantName(p, id string) string {
	dir, base := path.Split(p)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name, ext = base, ""
	}
	return dir + name + ".variant-" + shortID(id) + ext
}

// classify decides how an unmerged path is preserved. ok is false when
// both sides ended with the same content.
func classify(u annex.UnmergedPath) (Conflict, bool) {
	ours, theirs := u.Ours.Present(), u.Theirs.Present()
	switch {
	case ours && theirs:
		if identity(u.Ours) == identity(u.Theirs) {
			return Conflict{Path: u.Path, Kept: annex.KeepOurs}, false
		}
		return Conflict{
			Path:    u.Path,
			Kind:    ModifyModify,
			Variant: VariantName(u.Path, identity(u.Theirs)),
			Kept:    annex.KeepOurs,
		}, true
	case ours:
		return Conflict{Path: u.Path, Kind: ModifyDelete, Kept: annex.KeepOurs}, true
	case theirs:
		return Conflict{Path: u.Path, Kind: ModifyDelete, Kept: annex.KeepTheirs}, true
	}
	return Conflict{Path: u.Path}, false
}

// detectConflicts inspects a merge stopped on conflicts, stages a
// preservation for every conflicted path and returns what it found. The
// caller commits or aborts the merge.
func detectConflicts(ctx context.Context, tool annex.Tool) ([]Conflict, error) {
	unmerged, err := tool.Unmerged(ctx)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for _, u := range unmerged {
		c, isConflict := classify(u)
		if !u.Ours.Present() && !u.Theirs.Present() {
			logger.Debug("Both sides removed %q", u.Path)
			continue
		}
		res := annex.Resolution{Path: u.Path, Keep: c.Kept, VariantPath: c.Variant}
		if err := tool.Resolve(ctx, res); err != nil {
			return nil, fmt.Errorf("preserve %s: %w", u.Path, err)
		}
		if !isConflict {
			logger.Debug("Both sides of %q converged, no conflict", u.Path)
			continue
		}
		logger.Warn("Conflict on %q: %v", u.Path, c.Kind)
		metrics.RecordConflict(c.Kind.String())
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}
