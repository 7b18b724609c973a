package notify

import (
	"sync"
	"time"

	"bookwatch/internal/model"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred callbacks. Tests inject a virtual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by time.AfterFunc.
var RealClock Clock = realClock{}

// Debouncer buffers change events and hands them to flush once no new event
// has arrived for the configured delay. Every Add cancels the pending timer
// and schedules a new one; only the latest schedule ever fires.
type Debouncer struct {
	delay time.Duration
	clock Clock
	flush func([]model.ChangeEvent)

	mu    sync.Mutex
	buf   []model.ChangeEvent
	timer Timer
	gen   uint64
}

// NewDebouncer returns a Debouncer calling flush from the clock's goroutine.
func NewDebouncer(delay time.Duration, clock Clock, flush func([]model.ChangeEvent)) *Debouncer {
	if clock == nil {
		clock = RealClock
	}
	return &Debouncer{delay: delay, clock: clock, flush: flush}
}

// Add queues events and restarts the quiet period. Adding nothing is a no-op.
func (d *Debouncer) Add(events ...model.ChangeEvent) {
	if len(events) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, events...)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush delivers whatever is buffered right away and cancels the timer.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	buf := d.take()
	d.mu.Unlock()

	if len(buf) > 0 {
		d.flush(buf)
	}
}

// Pending reports how many events wait for the next flush.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buf)
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost the race against Stop must not flush a newer window.
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	buf := d.take()
	d.mu.Unlock()

	if len(buf) > 0 {
		d.flush(buf)
	}
}

func (d *Debouncer) take() []model.ChangeEvent {
	buf := d.buf
	d.buf = nil
	return buf
}
