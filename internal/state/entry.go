// Package state resolves virtual paths to backing-store objects and keeps
// the in-memory table of file entries. Nothing here is persisted: every
// entry can be rebuilt by inspecting the backing directory again.
package state

import (
	"os"
	"sync"
	"time"
)

// State is the materialization state of a file entry.
type State int

const (
	// Placeholder is a tracked object whose content is not local.
	Placeholder State = iota
	// Link is a tracked object whose content is local but still behind the
	// store's symlink.
	Link
	// Real is content readable through the mount with nothing pending.
	Real
	// Dirty is local content not yet handed to the store.
	Dirty
)

func (s State) String() string {
	switch s {
	case Placeholder:
		return "placeholder"
	case Link:
		return "link"
	case Real:
		return "real"
	case Dirty:
		return "dirty"
	}
	return "unknown"
}

// Snapshot is what an inspection of the backing store yields.
type Snapshot struct {
	State State
	// Annexed is set when the backing object is a store symlink.
	Annexed bool
	// Key is the store key of an annexed object.
	Key string
	// IsDir marks directories; they carry no materialization state.
	IsDir bool
	// Symlink marks user symlinks, Target is where they point.
	Symlink bool
	Target  string

	Size  int64
	Mode  os.FileMode
	Mtime time.Time
	Atime time.Time
	Ctime time.Time
	Uid   uint32
	Gid   uint32
}

// Entry is the per-path record. Lock/Unlock give the exclusion region that
// every state transition runs in; the snapshot has its own lock so
// attribute reads never wait on a fetch.
type Entry struct {
	excl sync.Mutex

	mu      sync.RWMutex
	path    VirtualPath
	backing string
	snap    Snapshot
	writers int
}

func newEntry(vp VirtualPath, backing string, snap Snapshot) *Entry {
	return &Entry{path: vp, backing: backing, snap: snap}
}

// Lock enters the entry's exclusion region.
func (e *Entry) Lock() {
	e.excl.Lock()
}

// TryLock enters the exclusion region only if it is free.
func (e *Entry) TryLock() bool {
	return e.excl.TryLock()
}

// Unlock leaves the exclusion region.
func (e *Entry) Unlock() {
	e.excl.Unlock()
}

// Path returns the current virtual path.
func (e *Entry) Path() VirtualPath {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.path
}

// Backing returns the absolute backing path.
func (e *Entry) Backing() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.backing
}

func (e *Entry) relocate(vp VirtualPath, backing string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.path = vp
	e.backing = backing
}

// Snapshot returns a copy of the cached attributes.
func (e *Entry) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// State returns the materialization state.
func (e *Entry) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap.State
}

// SetState records a transition. Callers hold the exclusion region.
func (e *Entry) SetState(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.State = s
}

// update replaces the snapshot, keeping Real over what a bare inspection
// reports for content that is already known to be complete locally.
func (e *Entry) update(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap.State == Real && !snap.IsDir && (snap.State == Link || snap.State == Dirty) {
		snap.State = Real
	}
	e.snap = snap
}

// AddWriter adjusts the open-writer count and returns the new value.
func (e *Entry) AddWriter(delta int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writers += delta
	if e.writers < 0 {
		e.writers = 0
	}
	return e.writers
}

// Writers returns the number of handles open for writing.
func (e *Entry) Writers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.writers
}
