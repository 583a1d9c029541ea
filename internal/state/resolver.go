package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sharebox/internal/annex"
	"sharebox/internal/logging"
)

var (
	resolverLogger = logging.GetLogger().WithPrefix("resolver")

	// ErrNotFound means no backing object exists for a virtual path.
	ErrNotFound = errors.New("no backing object")
)

// annexedMode is the mode reported for store-managed files: the symlink
// is an implementation detail and never shown.
const annexedMode os.FileMode = 0644

// Resolver maps virtual paths to entries, inspecting the backing
// directory on a cache miss. It never modifies the backing directory.
type Resolver struct {
	root          string
	table         *Table
	reportKeySize bool
}

// NewResolver creates a resolver over the backing directory root. With
// reportKeySize, placeholders report the size recorded in their store key
// instead of 0.
func NewResolver(root string, reportKeySize bool) *Resolver {
	resolverLogger.Debug("Creating resolver for %s (reportKeySize=%v)", root, reportKeySize)
	return &Resolver{
		root:          root,
		table:         NewTable(),
		reportKeySize: reportKeySize,
	}
}

// Root returns the backing directory.
func (r *Resolver) Root() string {
	return r.root
}

// Table returns the entry table.
func (r *Resolver) Table() *Table {
	return r.table
}

// Backing returns the absolute backing path of vp.
func (r *Resolver) Backing(vp VirtualPath) string {
	return vp.Backing(r.root)
}

func notFound(vp VirtualPath) error {
	return fmt.Errorf("%s: %w", vp.String(), ErrNotFound)
}

// Inspect classifies the backing object at vp without touching the table.
func (r *Resolver) Inspect(vp VirtualPath) (Snapshot, error) {
	if vp.Hidden() {
		return Snapshot{}, notFound(vp)
	}

	backing := r.Backing(vp)
	info, err := os.Lstat(backing)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, notFound(vp)
		}
		resolverLogger.Error("Failed to stat %q: %v", backing, err)
		return Snapshot{}, err
	}

	var snap Snapshot
	fillTimes(&snap, info)

	switch {
	case info.IsDir():
		snap.IsDir = true
		snap.State = Real
		snap.Mode = info.Mode()
		snap.Size = info.Size()

	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(backing)
		if err != nil {
			return Snapshot{}, err
		}
		if !annex.IsAnnexTarget(target) {
			snap.State = Real
			snap.Symlink = true
			snap.Target = target
			snap.Mode = info.Mode()
			snap.Size = int64(len(target))
			break
		}
		snap.Annexed = true
		snap.Key = annex.KeyFromTarget(target)
		snap.Mode = annexedMode
		object := target
		if !filepath.IsAbs(object) {
			object = filepath.Join(filepath.Dir(backing), target)
		}
		if objInfo, err := os.Stat(object); err == nil {
			snap.State = Link
			snap.Size = objInfo.Size()
		} else {
			snap.State = Placeholder
			if size := annex.KeySize(snap.Key); r.reportKeySize && size >= 0 {
				snap.Size = size
			}
		}

	case info.Mode().IsRegular():
		// Untracked or unlocked content found on lookup is pending
		// materialization until it is handed to the store.
		snap.State = Dirty
		snap.Mode = info.Mode()
		snap.Size = info.Size()

	default:
		snap.State = Real
		snap.Mode = info.Mode()
		snap.Size = info.Size()
	}

	resolverLogger.Trace("Inspected %q: state=%v annexed=%v size=%d", vp.String(), snap.State, snap.Annexed, snap.Size)
	return snap, nil
}

// Resolve returns the cached entry for vp, creating it from the backing
// store on a miss.
func (r *Resolver) Resolve(vp VirtualPath) (*Entry, error) {
	if e, ok := r.table.Get(vp); ok {
		return e, nil
	}
	snap, err := r.Inspect(vp)
	if err != nil {
		return nil, err
	}
	resolverLogger.Debug("Resolved %q as %v", vp.String(), snap.State)
	return r.table.Put(newEntry(vp, r.Backing(vp), snap)), nil
}

// Provision returns the entry for a path that is about to be created. The
// entry starts Dirty with an empty snapshot.
func (r *Resolver) Provision(vp VirtualPath) *Entry {
	if e, ok := r.table.Get(vp); ok {
		return e
	}
	return r.table.Put(newEntry(vp, r.Backing(vp), Snapshot{State: Dirty, Mode: 0644}))
}

// Refresh re-inspects the backing object of e. Callers that change state
// hold e's lock.
func (r *Resolver) Refresh(e *Entry) error {
	snap, err := r.Inspect(e.Path())
	if err != nil {
		return err
	}
	e.update(snap)
	return nil
}

// Drop removes e (and anything cached below it) from the table, but only
// while its path still maps to e, so a replacement created meanwhile
// survives.
func (r *Resolver) Drop(e *Entry) {
	vp := e.Path()
	if cur, ok := r.table.Get(vp); ok && cur == e {
		r.table.Forget(vp)
	}
}

// Adopt puts e back into the table after it was dropped, returning the
// entry that ends up cached for its path.
func (r *Resolver) Adopt(e *Entry) *Entry {
	return r.table.Put(e)
}

// Stat returns current attributes for vp. When a transition holds the
// entry, the cached snapshot is returned instead of a half-done state.
func (r *Resolver) Stat(vp VirtualPath) (*Entry, Snapshot, error) {
	e, err := r.Resolve(vp)
	if err != nil {
		return nil, Snapshot{}, err
	}
	if e.TryLock() {
		err = r.Refresh(e)
		if errors.Is(err, ErrNotFound) {
			r.Drop(e)
		}
		e.Unlock()
		if err != nil {
			return nil, Snapshot{}, err
		}
	}
	return e, e.Snapshot(), nil
}
