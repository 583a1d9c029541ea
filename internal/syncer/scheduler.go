// Package syncer runs sync cycles against peer repositories: merge their
// history, preserve conflicts, and reconcile file entries with the result.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sharebox/internal/annex"
	"sharebox/internal/config"
	"sharebox/internal/logging"
	"sharebox/internal/materialize"
	"sharebox/internal/metrics"
	"sharebox/internal/notify"
	"sharebox/internal/state"
)

var (
	logger = logging.GetLogger().WithPrefix("sync")

	// ErrAlreadySyncing rejects a cycle requested while another runs.
	ErrAlreadySyncing = errors.New("sync already in progress")
)

// Phase is the scheduler's position in its state machine.
type Phase int32

const (
	Idle Phase = iota
	Syncing
	Reconciling
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case Reconciling:
		return "reconciling"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Notifier receives sync events.
type Notifier interface {
	Notify(event, path string)
}

// Scheduler triggers sync cycles periodically or on demand. Cycles never
// overlap: a request while one runs is rejected, not queued.
type Scheduler struct {
	cfg      *config.Config
	engine   *materialize.Engine
	tool     annex.Tool
	notifier Notifier
	now      func() time.Time

	phase atomic.Int32
	// running is held for the length of a cycle.
	running sync.Mutex

	mu   sync.Mutex
	last *Report
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier routes sync events to n.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler driving engine's tool.
func New(cfg *config.Config, engine *materialize.Engine, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		engine:   engine,
		tool:     engine.Tool(),
		notifier: (*notify.Notifier)(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Phase returns the current state.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

// LastReport returns the report of the last finished cycle, or nil.
func (s *Scheduler) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run triggers a cycle every SyncInterval until ctx is done. With no
// interval configured it only waits, leaving syncs to Trigger and Start.
// Cancelling ctx stops new cycles; Run returns once the cycle in flight,
// if any, has finished.
func (s *Scheduler) Run(ctx context.Context) {
	defer s.Wait()

	if !s.cfg.SyncEnabled() {
		logger.Info("Periodic sync disabled, manual sync only")
		<-ctx.Done()
		return
	}

	logger.Info("Syncing every %v", s.cfg.SyncInterval)
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if _, err := s.Trigger(ctx); err != nil {
				if errors.Is(err, ErrAlreadySyncing) {
					logger.Debug("Skipping tick: %v", err)
				} else {
					logger.Warn("Periodic sync: %v", err)
				}
			}
			table := s.engine.Resolver().Table()
			table.Evict()
			metrics.SetEntries(table.Len())
		}
	}
}

// Wait blocks until no cycle is in flight.
func (s *Scheduler) Wait() {
	s.running.Lock()
	defer s.running.Unlock()
}

// reserve claims the Idle to Syncing transition.
func (s *Scheduler) reserve() error {
	if !s.phase.CompareAndSwap(int32(Idle), int32(Syncing)) {
		return ErrAlreadySyncing
	}
	s.running.Lock()
	return nil
}

// Trigger runs one cycle now. It returns ErrAlreadySyncing, without
// touching the backing directory, if a cycle is in flight. Otherwise the
// report is returned together with its error: a wrapped ErrMergeFailed or
// tool error for a failed cycle, a *ConflictError when conflicts were
// preserved. Cancelling ctx does not interrupt the cycle.
func (s *Scheduler) Trigger(ctx context.Context) (*Report, error) {
	if err := s.reserve(); err != nil {
		return nil, err
	}
	report := s.run(context.WithoutCancel(ctx))
	return report, report.Err
}

// Start begins a cycle in the background and returns at once. The phase
// has left Idle when Start returns; it goes back to Idle after the cycle's
// report is available from LastReport.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.reserve(); err != nil {
		return err
	}
	go func() {
		if report := s.run(context.WithoutCancel(ctx)); report.Err != nil {
			logger.Debug("Background sync finished with: %v", report.Err)
		}
	}()
	return nil
}

// run executes a reserved cycle and publishes its outcome.
func (s *Scheduler) run(ctx context.Context) *Report {
	defer s.running.Unlock()
	defer s.phase.Store(int32(Idle))

	report := s.cycle(ctx)

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	metrics.RecordSync(string(report.Result), report.Duration())
	switch report.Result {
	case ResultFailed:
		logger.Error("Sync failed: %v", report.Err)
		s.notifier.Notify(notify.EventSyncFailed, "/")
	case ResultConflict:
		for _, c := range report.Conflicts {
			s.notifier.Notify(notify.EventConflict, "/"+c.Path)
		}
		s.notifier.Notify(notify.EventSynced, "/")
	default:
		s.notifier.Notify(notify.EventSynced, "/")
	}
	logger.Info("Sync %s: %d added, %d removed, %d modified, %d conflicts",
		report.Result, len(report.Added), len(report.Removed), len(report.Modified), len(report.Conflicts))
	return report
}

func (s *Scheduler) fail(report *Report, err error) *Report {
	s.phase.Store(int32(Failed))
	report.Result = ResultFailed
	report.Err = err
	report.finish(s.now())
	return report
}

func (s *Scheduler) cycle(ctx context.Context) *Report {
	report := &Report{Started: s.now()}

	// Local edits go into history first so the merge can see them.
	if err := s.engine.FinalizePending(ctx); err != nil {
		logger.Warn("Some dirty files could not be committed before sync: %v", err)
	}

	remotes, err := s.tool.Remotes(ctx)
	if err != nil {
		return s.fail(report, err)
	}
	report.Remotes = remotes
	if len(remotes) == 0 {
		logger.Debug("No remotes configured")
	}

	for _, remote := range remotes {
		changes, conflicts, err := s.merge(ctx, remote)
		report.Conflicts = append(report.Conflicts, conflicts...)
		if err != nil {
			return s.fail(report, err)
		}

		s.phase.Store(int32(Reconciling))
		s.reconcile(ctx, changes, report)
		s.phase.Store(int32(Syncing))
	}

	report.finish(s.now())
	return report
}

// merge runs fetch, merge, conflict preservation and commit for one remote
// while holding the repository exclusively. It returns the paths the merge
// changed.
func (s *Scheduler) merge(ctx context.Context, remote string) ([]annex.Change, []Conflict, error) {
	var changes []annex.Change
	var conflicts []Conflict

	err := s.engine.Exclusive(func() error {
		pre, err := s.tool.Head(ctx)
		if err != nil {
			return err
		}

		logger.Info("Merging from %s", remote)
		mergeErr := s.tool.MergeFromRemote(ctx, remote)
		switch {
		case errors.Is(mergeErr, annex.ErrMergeConflict):
			conflicts, err = detectConflicts(ctx, s.tool)
			if err != nil {
				if abortErr := s.tool.AbortMerge(ctx); abortErr != nil {
					logger.Error("Could not abort merge from %s: %v", remote, abortErr)
				}
				conflicts = nil
				return fmt.Errorf("preserve conflicts from %s: %w", remote, err)
			}
			msg := fmt.Sprintf("merge %s, keeping %d conflicting variants", remote, len(conflicts))
			if err := s.tool.CommitMerge(ctx, msg); err != nil {
				conflicts = nil
				return err
			}
		case mergeErr != nil:
			return mergeErr
		}

		post, err := s.tool.Head(ctx)
		if err != nil {
			return err
		}
		changes, err = s.tool.Changes(ctx, pre, post)
		return err
	})
	return changes, conflicts, err
}

// reconcile updates entries for every path the merge touched, each inside
// its entry's exclusion region.
func (s *Scheduler) reconcile(ctx context.Context, changes []annex.Change, report *Report) {
	resolver := s.engine.Resolver()
	for _, c := range changes {
		vp := state.FromRel(c.Path)
		if vp.Hidden() {
			continue
		}
		logger.Debug("Reconciling %s %q", c.Kind, vp.String())

		switch c.Kind {
		case annex.Deleted:
			report.Removed = append(report.Removed, vp.String())
			if ent, ok := resolver.Table().Get(vp); ok {
				ent.Lock()
				if err := resolver.Refresh(ent); errors.Is(err, state.ErrNotFound) {
					resolver.Drop(ent)
				}
				ent.Unlock()
			}
			s.notifier.Notify(notify.EventRemoved, vp.String())
			continue

		case annex.Added:
			report.Added = append(report.Added, vp.String())
		case annex.Modified:
			report.Modified = append(report.Modified, vp.String())
		}

		ent, err := resolver.Resolve(vp)
		if err != nil {
			logger.Warn("Changed path %q not found after merge: %v", vp.String(), err)
			continue
		}
		ent.Lock()
		err = resolver.Refresh(ent)
		ent.Unlock()
		if err != nil {
			logger.Warn("Could not refresh %q: %v", vp.String(), err)
			continue
		}

		if ent.State() == state.Placeholder && s.cfg.GetAll {
			if _, err := s.engine.MaterializeForRead(ctx, vp); err != nil {
				logger.Warn("Eager fetch of %q failed, leaving placeholder: %v", vp.String(), err)
			}
		}
		if ent.State() == state.Placeholder {
			report.Placeholders = append(report.Placeholders, vp.String())
		}
		if c.Kind == annex.Added {
			s.notifier.Notify(notify.EventAdded, vp.String())
		}
	}
}
