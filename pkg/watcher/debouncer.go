// Package watcher reloads the explorer when its source changes on disk:
// a single payload file, or a whole directory tree that is re-scanned.
package watcher

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the default debounce window. Editors and
// archive extractors write in bursts.
const DefaultDebounceDuration = 300 * time.Millisecond

// Debouncer coalesces rapid triggers into one callback that runs once the
// triggers have been quiet for the configured duration.
type Debouncer struct {
	duration time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	seq      uint64
	fired    uint64
}

// NewDebouncer creates a Debouncer. A zero duration means
// DefaultDebounceDuration.
func NewDebouncer(duration time.Duration) *Debouncer {
	if duration <= 0 {
		duration = DefaultDebounceDuration
	}
	return &Debouncer{duration: duration}
}

// Trigger (re)schedules fn. Only the fn of the latest Trigger runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, func() {
		d.mu.Lock()
		// A timer that already fired can lose the race with Stop; the
		// sequence number decides.
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.fired++
		d.mu.Unlock()

		fn()
	})
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a callback is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Fired returns how many callbacks have run.
func (d *Debouncer) Fired() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired
}

// Duration returns the debounce window.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
