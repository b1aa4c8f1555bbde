// Package debounce collapses bursts of input into one delayed emission.
//
// A Debouncer waits for a quiet interval after the last Push and then emits the
// latest value exactly once. Every Push restarts the interval; only the final value
// of a burst is ever emitted. The list controller routes free-text search through a
// Debouncer so typing does not trigger one fetch per keystroke.
package debounce

import (
	"sync"
	"time"

	"github.com/goliatone/go-resource-list/pkg/clock"
)

// DefaultInterval is the quiet period used when none is configured.
const DefaultInterval = 500 * time.Millisecond

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock injects the time source. Tests pass a fake clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// Debouncer delays values of type T until input settles.
type Debouncer[T any] struct {
	mu         sync.Mutex
	interval   time.Duration
	emit       func(T)
	clock      clock.Clock
	timer      clock.Timer
	pending    T
	hasPending bool
	generation uint64
	closed     bool
}

// New creates a Debouncer that calls emit after interval of quiet. A non-positive
// interval uses DefaultInterval.
func New[T any](interval time.Duration, emit func(T), opts ...Option) *Debouncer[T] {
	o := options{clock: clock.Real()}
	for _, opt := range opts {
		opt(&o)
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Debouncer[T]{
		interval: interval,
		emit:     emit,
		clock:    o.clock,
	}
}

// Push records v as the latest value and restarts the quiet interval.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	d.stopLocked()
	d.generation++
	gen := d.generation
	d.pending = v
	d.hasPending = true
	d.timer = d.clock.AfterFunc(d.interval, func() {
		d.fire(gen)
	})
}

// Flush emits the pending value immediately, if any.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if d.closed || !d.hasPending {
		d.mu.Unlock()
		return
	}
	d.stopLocked()
	d.generation++
	v := d.takeLocked()
	d.mu.Unlock()

	d.emit(v)
}

// Cancel drops the pending value without emitting it.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.generation++
	d.takeLocked()
}

// Close cancels the pending value and ignores every later Push.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.generation++
	d.takeLocked()
	d.closed = true
}

// Pending reports whether a value is waiting for the quiet interval to pass.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// fire runs on the timer. A timer that was superseded after it started firing sees a
// newer generation and does nothing.
func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.generation || !d.hasPending {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	v := d.takeLocked()
	d.mu.Unlock()

	d.emit(v)
}

func (d *Debouncer[T]) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer[T]) takeLocked() T {
	v := d.pending
	var zero T
	d.pending = zero
	d.hasPending = false
	return v
}
