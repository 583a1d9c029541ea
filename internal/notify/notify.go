// Package notify runs the user's notifycmd on state-changing events.
//
// The command template is split once with shell quoting rules; every
// argument then has {path} and {event} substituted. Commands run one at a
// time from a bounded queue, throttled by a rate limiter, so a burst of
// events (a large sync) never blocks filesystem callers.
package notify

import (
	"context"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/shlex"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"sharebox/internal/logging"
)

var logger = logging.GetLogger().WithPrefix("notify")

// Event names passed as {event}.
const (
	EventFetched    = "fetched"
	EventCommitted  = "committed"
	EventCreated    = "created"
	EventRemoved    = "removed"
	EventRenamed    = "renamed"
	EventAdded      = "added"
	EventSynced     = "synced"
	EventSyncFailed = "syncfailed"
	EventConflict   = "conflict"
)

const (
	queueSize    = 256
	defaultRate  = 10
	defaultBurst = 20
)

// Runner executes one expanded command line.
type Runner func(ctx context.Context, argv []string) error

// Notifier queues events and runs the configured command for each.
// A nil *Notifier or an empty template is valid and does nothing.
type Notifier struct {
	argv    []string
	limiter *rate.Limiter
	run     Runner
	queue   chan []string

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New parses template. An empty template yields a Notifier that drops
// every event.
func New(template string) (*Notifier, error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return nil, errors.Wrapf(err, "parse notifycmd %q", template)
	}
	return &Notifier{
		argv:    argv,
		limiter: rate.NewLimiter(rate.Limit(defaultRate), defaultBurst),
		run:     execRunner,
		queue:   make(chan []string, queueSize),
		done:    make(chan struct{}),
	}, nil
}

// WithRunner replaces the command runner. Must be called before Start.
func (n *Notifier) WithRunner(r Runner) *Notifier {
	n.run = r
	return n
}

// WithLimit replaces the throttle. Must be called before Start.
func (n *Notifier) WithLimit(limit rate.Limit, burst int) *Notifier {
	n.limiter = rate.NewLimiter(limit, burst)
	return n
}

func execRunner(ctx context.Context, argv []string) error {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		return errors.Wrapf(err, "%s: %s", argv[0], strings.TrimSpace(string(out)))
	}
	return nil
}

// Enabled reports whether events will run a command.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.argv) > 0
}

// Expand substitutes event and path into the template.
func (n *Notifier) Expand(event, path string) []string {
	r := strings.NewReplacer("{path}", path, "{event}", event)
	out := make([]string, len(n.argv))
	for i, arg := range n.argv {
		out[i] = r.Replace(arg)
	}
	return out
}

// Start launches the worker. It stops when ctx is done or Close is called.
func (n *Notifier) Start(ctx context.Context) {
	if !n.Enabled() {
		return
	}
	n.startOnce.Do(func() {
		n.started.Store(true)
		go n.loop(ctx)
	})
}

func (n *Notifier) loop(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-ctx.Done():
			return
		case argv, ok := <-n.queue:
			if !ok {
				return
			}
			if err := n.limiter.Wait(ctx); err != nil {
				return
			}
			if err := n.run(ctx, argv); err != nil {
				logger.Warn("notifycmd failed: %v", err)
			}
		}
	}
}

// Notify queues one event. It never blocks; when the queue is full the
// event is dropped and logged.
func (n *Notifier) Notify(event, path string) {
	if !n.Enabled() {
		return
	}
	argv := n.Expand(event, path)
	logger.Trace("Queueing %s event for %q", event, path)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- argv:
	default:
		logger.Warn("Notification queue full, dropping %s event for %q", event, path)
	}
}

// Close drains the queue and waits for the worker to exit.
func (n *Notifier) Close() {
	if !n.Enabled() {
		return
	}
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
	})
	if n.started.Load() {
		<-n.done
	}
}
