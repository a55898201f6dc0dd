package location

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/sidequest/internal/logging"
)

// Update is what a Tracker reports to its listener.
type Update struct {
	Fix *Fix
	Err error
}

// Tracker keeps one live provider subscription and the latest fix.
type Tracker struct {
	provider Provider
	opts     Options
	logger   logging.Logger
	now      func() time.Time
	listener func(Update)

	mu      sync.Mutex
	gen     uint64
	stop    func()
	timer   *time.Timer
	started time.Time
	current *Fix
	fixGen  uint64
	err     error
}

type TrackerOption func(*Tracker)

// WithListener registers fn to be called after every accepted fix or error.
func WithListener(fn func(Update)) TrackerOption {
	return func(t *Tracker) { t.listener = fn }
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(p Provider, opts Options, logger logging.Logger, options ...TrackerOption) *Tracker {
	if logger == nil {
		logger = logging.Discard()
	}
	t := &Tracker{provider: p, opts: opts, logger: logger, now: time.Now}
	for _, o := range options {
		o(t)
	}
	return t
}

// Start tears down any previous subscription and opens a new one. The last
// known fix is kept; the last error is cleared. A provider that cannot start
// at all (e.g. ErrLocationUnsupported) is reported both as the return value
// and through Err.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.err = nil
	t.started = t.now()
	t.mu.Unlock()

	stop, err := t.provider.Watch(ctx, t.opts,
		func(f Fix) { t.handleFix(gen, f) },
		func(err error) { t.handleErr(gen, err) },
	)

	t.mu.Lock()
	if gen != t.gen {
		// restarted or stopped while Watch was running
		t.mu.Unlock()
		if stop != nil {
			stop()
		}
		return nil
	}
	if err != nil {
		t.err = err
		t.mu.Unlock()
		t.logger.Warn(ctx, "location watch failed", "error", err)
		t.notify(Update{Err: err})
		return err
	}
	t.stop = stop
	if t.opts.Timeout > 0 && t.fixGen != gen {
		t.timer = time.AfterFunc(t.opts.Timeout, func() {
			t.handleTimeout(gen)
		})
	}
	t.mu.Unlock()
	return nil
}

// Stop ends the live subscription, if any. Late callbacks are ignored.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.gen++
	t.stopLocked()
	t.mu.Unlock()
}

// Current returns the latest accepted fix.
func (t *Tracker) Current() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return Fix{}, false
	}
	return *t.current, true
}

// Err returns the last error since the most recent Start, if any.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}

func (t *Tracker) handleFix(gen uint64, f Fix) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	if !f.Valid() || t.stale(f) {
		t.mu.Unlock()
		t.logger.Debug(context.Background(), "location fix rejected", "fix", f.Coordinate.String(), "at", f.Timestamp)
		return
	}
	t.current = &f
	t.fixGen = gen
	t.err = nil
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	t.notify(Update{Fix: &f})
}

func (t *Tracker) handleErr(gen uint64, err error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.err = err
	t.mu.Unlock()

	t.logger.Warn(context.Background(), "location error", "error", err)
	t.notify(Update{Err: err})
}

func (t *Tracker) handleTimeout(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.fixGen == gen {
		t.mu.Unlock()
		return
	}
	t.err = ErrLocationTimeout
	t.timer = nil
	t.mu.Unlock()

	t.notify(Update{Err: ErrLocationTimeout})
}

// stale must be called with t.mu held.
func (t *Tracker) stale(f Fix) bool {
	if f.Timestamp.IsZero() {
		return false
	}
	if t.opts.MaximumAge == 0 {
		return f.Timestamp.Before(t.started)
	}
	return t.now().Sub(f.Timestamp) > t.opts.MaximumAge
}

func (t *Tracker) notify(u Update) {
	if t.listener != nil {
		t.listener(u)
	}
}
