package state

import (
	"sort"
	"sync"

	"sharebox/internal/logging"
)

var (
	tableLogger = logging.GetLogger().WithPrefix("table")
)

// Table holds file entries keyed by virtual path. Directory questions are
// answered by prefix scans, entries never point at each other.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Get returns the entry for vp, if one is cached.
func (t *Table) Get(vp VirtualPath) (*Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[vp.String()]
	return e, ok
}

// Put inserts e unless an entry for the same path already exists, in which
// case the existing entry is returned.
func (t *Table) Put(e *Entry) *Entry {
	key := e.Path().String()
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[key]; ok {
		return existing
	}
	tableLogger.Trace("Caching entry %q", key)
	t.entries[key] = e
	return e
}

// Len returns the number of cached entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Children returns the cached entries directly inside dir.
func (t *Table) Children(dir VirtualPath) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var result []*Entry
	for _, e := range t.entries {
		p := e.Path()
		if !p.IsRoot() && p.Parent() == dir {
			result = append(result, e)
		}
	}
	return sortEntries(result)
}

// Descendants returns the cached entries strictly below dir.
func (t *Table) Descendants(dir VirtualPath) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var result []*Entry
	for _, e := range t.entries {
		p := e.Path()
		if p != dir && p.Within(dir) {
			result = append(result, e)
		}
	}
	return sortEntries(result)
}

// Select returns the entries for which keep returns true, in path order.
func (t *Table) Select(keep func(*Entry) bool) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var result []*Entry
	for _, e := range t.entries {
		if keep(e) {
			result = append(result, e)
		}
	}
	return sortEntries(result)
}

// Forget drops vp and everything cached below it.
func (t *Table) Forget(vp VirtualPath) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, e := range t.entries {
		if e.Path().Within(vp) {
			tableLogger.Trace("Forgetting entry %q", key)
			delete(t.entries, key)
		}
	}
}

// Move re-keys oldPath and all its descendants below newPath, carrying
// their state forward. Anything cached at the destination is dropped.
func (t *Table) Move(oldPath, newPath VirtualPath, root string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, e := range t.entries {
		if e.Path().Within(newPath) {
			delete(t.entries, key)
		}
	}

	var moved []*Entry
	for key, e := range t.entries {
		if e.Path().Within(oldPath) {
			delete(t.entries, key)
			moved = append(moved, e)
		}
	}
	for _, e := range moved {
		dest := e.Path().Rebase(oldPath, newPath)
		tableLogger.Trace("Moving entry %q -> %q", e.Path().String(), dest.String())
		e.relocate(dest, dest.Backing(root))
		t.entries[dest.String()] = e
	}
}

// Evict drops entries that are idle: not locked and with no open writers.
// Dirty entries are kept so pending work is not lost. It returns the
// number of entries dropped.
func (t *Table) Evict() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for key, e := range t.entries {
		if e.Writers() > 0 || e.State() == Dirty {
			continue
		}
		if !e.TryLock() {
			continue
		}
		delete(t.entries, key)
		e.Unlock()
		evicted++
	}
	if evicted > 0 {
		tableLogger.Debug("Evicted %d idle entries", evicted)
	}
	return evicted
}

func sortEntries(entries []*Entry) []*Entry {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path().Less(entries[j].Path())
	})
	return entries
}
