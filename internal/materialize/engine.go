// Package materialize moves file entries between placeholder, real and
// dirty states, driving the annex tool for every transition that touches
// the backing store.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"sharebox/internal/annex"
	"sharebox/internal/logging"
	"sharebox/internal/metrics"
	"sharebox/internal/notify"
	"sharebox/internal/state"
)

var (
	logger = logging.GetLogger().WithPrefix("engine")

	// ErrUnavailableContent means a placeholder's content could not be
	// fetched. The entry stays a placeholder so a later access can retry.
	ErrUnavailableContent = errors.New("content unavailable")
)

// Notifier receives state-changing events.
type Notifier interface {
	Notify(event, path string)
}

// Engine performs state transitions on file entries. Every transition runs
// inside the entry's exclusion region; commands that write the repository
// index additionally hold the repository lock in shared mode, so a sync can
// take it exclusively for the length of a merge.
type Engine struct {
	resolver *state.Resolver
	tool     annex.Tool
	notifier Notifier

	repo sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier routes events to n.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// New creates an engine over resolver's backing directory.
func New(resolver *state.Resolver, tool annex.Tool, opts ...Option) *Engine {
	e := &Engine{
		resolver: resolver,
		tool:     tool,
		notifier: (*notify.Notifier)(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolver returns the path resolver the engine works on.
func (e *Engine) Resolver() *state.Resolver {
	return e.resolver
}

// Tool returns the annex collaborator.
func (e *Engine) Tool() annex.Tool {
	return e.tool
}

// Exclusive runs fn while no transition is writing the repository index.
func (e *Engine) Exclusive(fn func() error) error {
	e.repo.Lock()
	defer e.repo.Unlock()
	return fn()
}

func (e *Engine) shared(fn func() error) error {
	e.repo.RLock()
	defer e.repo.RUnlock()
	return fn()
}

func (e *Engine) notify(event string, vp state.VirtualPath) {
	e.notifier.Notify(event, vp.String())
}

// detached runs fn inside ent's exclusion region on its own goroutine. If
// ctx ends first the caller gets ctx.Err() while fn still runs to
// completion, so a cancelled kernel call never leaves a half-fetched object.
func (e *Engine) detached(ctx context.Context, ent *state.Entry, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	ent.Lock()
	go func() {
		defer ent.Unlock()
		done <- fn(context.WithoutCancel(ctx))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Debug("Caller for %q went away, letting transition finish", ent.Path().String())
		return ctx.Err()
	}
}

// refresh re-inspects ent, dropping it from the table if its backing
// object disappeared.
func (e *Engine) refresh(ent *state.Entry) error {
	err := e.resolver.Refresh(ent)
	if errors.Is(err, state.ErrNotFound) {
		e.resolver.Drop(ent)
	}
	return err
}

// fetch retrieves placeholder content. Caller holds ent's lock.
func (e *Engine) fetch(ctx context.Context, ent *state.Entry) error {
	vp := ent.Path()
	logger.Info("Fetching content for %q", vp.String())
	start := time.Now()
	err := e.tool.Fetch(ctx, vp.Rel())
	metrics.RecordFetch(time.Since(start), err == nil)
	if err != nil {
		logger.Error("Fetch of %q failed: %v", vp.String(), err)
		return fmt.Errorf("%s: %w: %w", vp.String(), ErrUnavailableContent, err)
	}
	if err := e.refresh(ent); err != nil {
		return err
	}
	if ent.State() == state.Placeholder {
		return fmt.Errorf("%s: %w: object still missing after fetch", vp.String(), ErrUnavailableContent)
	}
	e.notify(notify.EventFetched, vp)
	return nil
}

// MaterializeForRead makes vp's content readable locally. Placeholders are
// fetched, blocking for as long as the transfer takes; links need no
// transfer. Real and dirty entries are left alone.
func (e *Engine) MaterializeForRead(ctx context.Context, vp state.VirtualPath) (*state.Entry, error) {
	ent, err := e.resolver.Resolve(vp)
	if err != nil {
		return nil, err
	}
	err = e.detached(ctx, ent, func(ctx context.Context) error {
		if err := e.refresh(ent); err != nil {
			return err
		}
		switch ent.State() {
		case state.Placeholder:
			if err := e.fetch(ctx, ent); err != nil {
				return err
			}
			ent.SetState(state.Real)
		case state.Link:
			ent.SetState(state.Real)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Materialized %q for read (state=%v)", vp.String(), ent.State())
	return ent, nil
}

// StageForWrite prepares vp for writing. Tracked content is fetched if
// needed and unlocked into a regular file, so a write always starts from
// the previously tracked bytes. With create, a missing path becomes an
// empty file with the given mode. The entry ends up Dirty.
//
// On success the caller holds a writer on the entry, registered before the
// path's exclusion is released, and must give it back with Release.
func (e *Engine) StageForWrite(ctx context.Context, vp state.VirtualPath, create bool, mode os.FileMode) (*state.Entry, error) {
	ent, err := e.resolver.Resolve(vp)
	if errors.Is(err, state.ErrNotFound) && create && !vp.Hidden() {
		ent = e.resolver.Provision(vp)
	} else if err != nil {
		return nil, err
	}

	// claim hands the writer over to the caller, unless the caller has
	// already gone away.
	var (
		claim      sync.Mutex
		abandoned  bool
		registered bool
	)
	register := func() {
		claim.Lock()
		defer claim.Unlock()
		if !abandoned {
			ent.AddWriter(1)
			registered = true
		}
	}

	err = e.detached(ctx, ent, func(ctx context.Context) error {
		err := e.resolver.Refresh(ent)
		if errors.Is(err, state.ErrNotFound) {
			if !create {
				e.resolver.Drop(ent)
				return err
			}
			if err := e.createBacking(ent, mode); err != nil {
				return err
			}
			register()
			return nil
		}
		if err != nil {
			return err
		}

		snap := ent.Snapshot()
		if snap.IsDir {
			return &os.PathError{Op: "open", Path: vp.String(), Err: syscall.EISDIR}
		}
		switch snap.State {
		case state.Placeholder:
			if err := e.fetch(ctx, ent); err != nil {
				return err
			}
			if err := e.unlock(ctx, ent); err != nil {
				return err
			}
		case state.Link:
			if err := e.unlock(ctx, ent); err != nil {
				return err
			}
		case state.Real:
			if snap.Annexed {
				if err := e.unlock(ctx, ent); err != nil {
					return err
				}
			}
		}
		ent.SetState(state.Dirty)
		register()
		return nil
	})
	if err != nil {
		claim.Lock()
		abandoned = true
		if registered {
			// The transition finished after the caller gave up; the entry
			// stays Dirty for the next FinalizePending.
			ent.AddWriter(-1)
		}
		claim.Unlock()
		return nil, err
	}
	logger.Debug("Staged %q for write (%d writers)", vp.String(), ent.Writers())
	return ent, nil
}

func (e *Engine) createBacking(ent *state.Entry, mode os.FileMode) error {
	vp := ent.Path()
	if mode == 0 {
		mode = 0644
	}
	f, err := os.OpenFile(ent.Backing(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode.Perm())
	if err != nil {
		e.resolver.Drop(ent)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := e.resolver.Refresh(ent); err != nil {
		return err
	}
	e.resolver.Adopt(ent)
	ent.SetState(state.Dirty)
	logger.Info("Created %q", vp.String())
	e.notify(notify.EventCreated, vp)
	return nil
}

// unlock turns tracked content into a regular writable file. Caller holds
// ent's lock.
func (e *Engine) unlock(ctx context.Context, ent *state.Entry) error {
	vp := ent.Path()
	logger.Debug("Unlocking %q", vp.String())
	if err := e.shared(func() error { return e.tool.Unlock(ctx, vp.Rel()) }); err != nil {
		logger.Error("Unlock of %q failed: %v", vp.String(), err)
		return err
	}
	return e.refresh(ent)
}

// Release gives back a writer obtained from StageForWrite. The last
// writer's release finalizes the entry.
func (e *Engine) Release(ctx context.Context, ent *state.Entry) error {
	n := ent.AddWriter(-1)
	logger.Trace("Writer released on %q (%d open)", ent.Path().String(), n)
	if n > 0 {
		return nil
	}
	return e.Finalize(ctx, ent)
}

// Finalize hands a dirty entry with no open writers to the store, which
// adds and commits it. Ignored files just become Real. On failure the
// entry stays Dirty and the next release retries.
func (e *Engine) Finalize(ctx context.Context, ent *state.Entry) error {
	return e.detached(ctx, ent, func(ctx context.Context) error {
		return e.finalizeLocked(ctx, ent)
	})
}

func (e *Engine) finalizeLocked(ctx context.Context, ent *state.Entry) error {
	vp := ent.Path()
	if ent.Writers() > 0 {
		logger.Trace("Not finalizing %q: writers still open", vp.String())
		return nil
	}
	if err := e.refresh(ent); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil
		}
		return err
	}
	if ent.State() != state.Dirty {
		return nil
	}

	ignored, err := e.tool.IsIgnored(ctx, vp.Rel())
	if err != nil {
		return err
	}
	if ignored {
		logger.Debug("Not tracking ignored file %q", vp.String())
		ent.SetState(state.Real)
		return nil
	}

	logger.Info("Committing %q", vp.String())
	err = e.shared(func() error {
		return e.tool.Track(ctx, vp.Rel(), "changed "+vp.Rel())
	})
	metrics.RecordFinalize(err == nil)
	if err != nil {
		logger.Error("Finalize of %q failed, keeping it dirty: %v", vp.String(), err)
		return err
	}
	if err := e.refresh(ent); err != nil {
		return err
	}
	ent.SetState(state.Real)
	e.notify(notify.EventCommitted, vp)
	return nil
}

// FinalizePending finalizes every dirty entry that has no open writer.
// Failures are collected; one bad file does not block the rest.
func (e *Engine) FinalizePending(ctx context.Context) error {
	var errs []error
	for _, vp := range e.DirtyPaths() {
		ent, ok := e.resolver.Table().Get(vp)
		if !ok || ent.Writers() > 0 {
			continue
		}
		ent.Lock()
		err := e.finalizeLocked(ctx, ent)
		ent.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DirtyPaths lists entries holding content not yet handed to the store.
func (e *Engine) DirtyPaths() []state.VirtualPath {
	var paths []state.VirtualPath
	for _, ent := range e.resolver.Table().Select(func(ent *state.Entry) bool {
		return ent.State() == state.Dirty
	}) {
		paths = append(paths, ent.Path())
	}
	return paths
}

// Unlink removes vp and its tracking. Placeholders are never fetched.
func (e *Engine) Unlink(ctx context.Context, vp state.VirtualPath) error {
	ent, err := e.resolver.Resolve(vp)
	if err != nil {
		return err
	}
	ent.Lock()
	defer ent.Unlock()

	if ent.Snapshot().IsDir {
		return &os.PathError{Op: "unlink", Path: vp.String(), Err: syscall.EISDIR}
	}

	logger.Info("Removing %q", vp.String())
	if err := os.Remove(ent.Backing()); err != nil && !os.IsNotExist(err) {
		return err
	}
	e.resolver.Drop(ent)

	tracked, err := e.tool.IsTracked(ctx, vp.Rel())
	if err != nil {
		return err
	}
	if tracked {
		if err := e.shared(func() error {
			return e.tool.Remove(ctx, vp.Rel(), "removed "+vp.Rel())
		}); err != nil {
			logger.Error("Failed to record removal of %q: %v", vp.String(), err)
			return err
		}
	}
	e.notify(notify.EventRemoved, vp)
	return nil
}

// Rename moves oldPath to newPath, carrying every entry's state forward.
// A dirty file stays dirty: rename never finalizes.
func (e *Engine) Rename(ctx context.Context, oldPath, newPath state.VirtualPath) error {
	if newPath.Hidden() {
		return &os.PathError{Op: "rename", Path: newPath.String(), Err: syscall.EPERM}
	}
	src, err := e.resolver.Resolve(oldPath)
	if err != nil {
		return err
	}
	dst, err := e.resolver.Resolve(newPath)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}

	// Lock in path order so concurrent renames cannot deadlock.
	first, second := src, dst
	if dst != nil && newPath.Less(oldPath) {
		first, second = dst, src
	}
	first.Lock()
	defer first.Unlock()
	if second != nil && second != first {
		second.Lock()
		defer second.Unlock()
	}

	logger.Info("Renaming %q -> %q", oldPath.String(), newPath.String())
	tracked, err := e.tool.IsTracked(ctx, oldPath.Rel())
	if err != nil {
		return err
	}
	if err := os.Rename(e.resolver.Backing(oldPath), e.resolver.Backing(newPath)); err != nil {
		return err
	}
	e.resolver.Table().Move(oldPath, newPath, e.resolver.Root())

	if tracked {
		err = e.shared(func() error {
			ignored, err := e.tool.IsIgnored(ctx, newPath.Rel())
			if err != nil {
				return err
			}
			if ignored {
				return e.tool.Remove(ctx, oldPath.Rel(), "moved "+oldPath.Rel()+" to ignored file")
			}
			return e.tool.Move(ctx, oldPath.Rel(), newPath.Rel(), "moved "+oldPath.Rel()+" to "+newPath.Rel())
		})
		if err != nil {
			logger.Error("Failed to record rename of %q: %v", oldPath.String(), err)
			return err
		}
	}
	e.notify(notify.EventRenamed, newPath)
	return nil
}

// modify runs op on vp's backing file inside an unlock, op, commit cycle.
// With writers open the commit is left to their release.
func (e *Engine) modify(ctx context.Context, vp state.VirtualPath, what string, op func(backing string) error) error {
	snap, err := e.resolver.Inspect(vp)
	if err != nil {
		return err
	}
	if snap.IsDir || snap.Symlink {
		return op(e.resolver.Backing(vp))
	}

	ent, err := e.StageForWrite(ctx, vp, false, 0)
	if err != nil {
		return err
	}
	logger.Debug("Applying %s to %q", what, vp.String())
	opErr := op(ent.Backing())
	if err := e.Release(ctx, ent); err != nil && opErr == nil {
		return err
	}
	return opErr
}

// Truncate changes vp's size.
func (e *Engine) Truncate(ctx context.Context, vp state.VirtualPath, size int64) error {
	return e.modify(ctx, vp, "truncate", func(backing string) error {
		return os.Truncate(backing, size)
	})
}

// Chmod changes vp's permission bits.
func (e *Engine) Chmod(ctx context.Context, vp state.VirtualPath, mode os.FileMode) error {
	return e.modify(ctx, vp, "chmod", func(backing string) error {
		return os.Chmod(backing, mode)
	})
}

// Chown changes vp's owner. A negative id leaves that field unchanged.
func (e *Engine) Chown(ctx context.Context, vp state.VirtualPath, uid, gid int) error {
	return e.modify(ctx, vp, "chown", func(backing string) error {
		return os.Lchown(backing, uid, gid)
	})
}

// Symlink creates a user symlink at vp pointing at target and tracks it.
func (e *Engine) Symlink(ctx context.Context, vp state.VirtualPath, target string) (*state.Entry, error) {
	if vp.Hidden() {
		return nil, &os.PathError{Op: "symlink", Path: vp.String(), Err: syscall.EPERM}
	}
	logger.Info("Creating symlink %q -> %q", vp.String(), target)
	if err := os.Symlink(target, e.resolver.Backing(vp)); err != nil {
		return nil, err
	}
	ent, err := e.resolver.Resolve(vp)
	if err != nil {
		return nil, err
	}
	ent.Lock()
	defer ent.Unlock()

	ignored, err := e.tool.IsIgnored(ctx, vp.Rel())
	if err != nil {
		return nil, err
	}
	if !ignored {
		if err := e.shared(func() error {
			return e.tool.Track(ctx, vp.Rel(), "created symlink "+vp.Rel()+" -> "+target)
		}); err != nil {
			return nil, err
		}
	}
	if err := e.refresh(ent); err != nil {
		return nil, err
	}
	e.notify(notify.EventCreated, vp)
	return ent, nil
}

// Mkdir creates a directory. Directories are not tracked objects.
func (e *Engine) Mkdir(_ context.Context, vp state.VirtualPath, mode os.FileMode) (*state.Entry, error) {
	if vp.Hidden() {
		return nil, &os.PathError{Op: "mkdir", Path: vp.String(), Err: syscall.EPERM}
	}
	logger.Info("Creating directory %q", vp.String())
	if err := os.Mkdir(e.resolver.Backing(vp), mode.Perm()); err != nil {
		return nil, err
	}
	return e.resolver.Resolve(vp)
}

// Rmdir removes an empty directory.
func (e *Engine) Rmdir(_ context.Context, vp state.VirtualPath) error {
	snap, err := e.resolver.Inspect(vp)
	if err != nil {
		return err
	}
	if !snap.IsDir {
		return &os.PathError{Op: "rmdir", Path: vp.String(), Err: syscall.ENOTDIR}
	}
	logger.Info("Removing directory %q", vp.String())
	if err := os.Remove(e.resolver.Backing(vp)); err != nil {
		return err
	}
	e.resolver.Table().Forget(vp)
	return nil
}
