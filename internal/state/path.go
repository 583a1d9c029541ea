package state

import (
	"path"
	"path/filepath"
	"strings"

	"sharebox/internal/logging"
)

var (
	pathLogger = logging.GetLogger().WithPrefix("path")
)

// hiddenNames are root-level names of the backing directory that are never
// exposed through the mount.
var hiddenNames = map[string]bool{
	".git":       true,
	".git-annex": true,
}

// VirtualPath represents a path in the mounted filesystem.
// It is always absolute, cleaned and slash separated.
type VirtualPath struct {
	// always starts with /
	path string
}

// NewVirtualPath creates a new VirtualPath instance.
// It cleans the path and ensures it's absolute.
func NewVirtualPath(p string) VirtualPath {
	cleaned := path.Clean("/" + filepath.ToSlash(p))
	pathLogger.Trace("Creating new virtual path: %q -> %q", p, cleaned)
	return VirtualPath{path: cleaned}
}

// FromRel converts a repository-relative path (as the annex tool reports
// it) into a VirtualPath.
func FromRel(rel string) VirtualPath {
	return NewVirtualPath(rel)
}

// String returns the string representation of the path
func (vp VirtualPath) String() string {
	if vp.path == "" {
		return "/"
	}
	return vp.path
}

// Rel returns the path relative to the repository root, "" for the root.
func (vp VirtualPath) Rel() string {
	return strings.TrimPrefix(vp.String(), "/")
}

// Backing returns the absolute location of the path inside root.
func (vp VirtualPath) Backing(root string) string {
	full := filepath.Join(root, filepath.FromSlash(vp.Rel()))
	pathLogger.Trace("Getting backing path: %q + %q -> %q", root, vp.String(), full)
	return full
}

// Parent returns the containing directory
func (vp VirtualPath) Parent() VirtualPath {
	return VirtualPath{path: path.Dir(vp.String())}
}

// Base returns the last element of the path
func (vp VirtualPath) Base() string {
	return path.Base(vp.String())
}

// Join appends one name to the path.
func (vp VirtualPath) Join(name string) VirtualPath {
	return NewVirtualPath(vp.String() + "/" + name)
}

// IsRoot returns true if this is the root virtual path "/"
func (vp VirtualPath) IsRoot() bool {
	return vp.String() == "/"
}

// Within reports whether vp is dir itself or lies below it.
func (vp VirtualPath) Within(dir VirtualPath) bool {
	if dir.IsRoot() {
		return true
	}
	return vp.String() == dir.String() || strings.HasPrefix(vp.String(), dir.String()+"/")
}

// Rebase moves vp from below oldDir to below newDir. vp must be Within oldDir.
func (vp VirtualPath) Rebase(oldDir, newDir VirtualPath) VirtualPath {
	suffix := strings.TrimPrefix(vp.String(), oldDir.String())
	return NewVirtualPath(newDir.String() + "/" + suffix)
}

// Hidden reports whether the path belongs to the repository's own
// bookkeeping (.git and friends) and must not be visible.
func (vp VirtualPath) Hidden() bool {
	first, _, _ := strings.Cut(vp.Rel(), "/")
	return hiddenNames[first]
}

// Less orders paths for lock acquisition.
func (vp VirtualPath) Less(other VirtualPath) bool {
	return vp.String() < other.String()
}
