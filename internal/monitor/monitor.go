// Package monitor drives the diff engine: it fetches the calendar on a cron
// schedule, keeps the booking list, and hands changes to the notifier.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bookwatch/internal/calendar"
	"bookwatch/internal/diff"
	appLog "bookwatch/internal/log"
	"bookwatch/internal/metrics"
	"bookwatch/internal/model"
	"bookwatch/internal/notify"
)

const (
	defaultPassTimeout = 5 * time.Minute
	deliveryTimeout    = time.Minute
)

// Store persists the booking list between restarts.
type Store interface {
	Load() ([]model.Booking, error)
	Save(bookings []model.Booking) error
}

// Options wires a Monitor. Source and Store are required.
type Options struct {
	Source     calendar.Source
	Store      Store
	Dispatcher *notify.Dispatcher
	Metrics    *metrics.Metrics

	// Location decides the current date and when a day ends.
	Location *time.Location
	// Debounce is the quiet period before buffered changes are delivered.
	Debounce time.Duration
	// PassTimeout bounds a single pass, fetch included.
	PassTimeout time.Duration

	// Clock drives the debouncer. Now reads the wall clock. NewID makes
	// booking IDs. All default to the real thing.
	Clock notify.Clock
	Now   func() time.Time
	NewID func() string
}

// Status describes the most recent pass.
type Status struct {
	LastPass    time.Time `json:"last_pass"`
	LastResult  string    `json:"last_result"`
	LastError   string    `json:"last_error,omitempty"`
	LastSuccess time.Time `json:"last_success"`
	LastEvents  int       `json:"last_events"`
	Pending     int       `json:"pending_events"`
	Bookings    int       `json:"active_bookings"`
	Blocked     int       `json:"blocked_off"`
}

// Monitor owns the booking list. Passes never overlap.
type Monitor struct {
	opts      Options
	debouncer *notify.Debouncer

	passMu sync.Mutex
	// deliverMu keeps one flush from overlapping the next, so a slow sink
	// cannot reorder messages.
	deliverMu sync.Mutex

	mu       sync.RWMutex
	bookings []model.Booking
	firstRun bool
	lastDay  time.Time
	status   Status
}

// New restores the persisted booking list and returns a ready Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Source == nil {
		return nil, errors.New("monitor: source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("monitor: store is required")
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = notify.NewDispatcher()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = defaultPassTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	bookings, err := opts.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("monitor: restore bookings: %w", err)
	}

	m := &Monitor{
		opts:     opts,
		bookings: bookings,
		firstRun: true,
	}
	m.debouncer = notify.NewDebouncer(opts.Debounce, opts.Clock, m.deliver)
	opts.Metrics.SetBookings(bookings, m.Today())

	appLog.Info("monitor ready", "restored_bookings", len(bookings))
	return m, nil
}

// Today is the current calendar date in the configured location.
func (m *Monitor) Today() time.Time {
	return model.DateOf(m.opts.Now().In(m.opts.Location))
}

// Poll runs one pass: fetch, diff, queue notifications.
//
// The first pass on a new calendar day is a post-midnight pass even when
// postMidnight is false. A fetch that reports unchanged data skips the diff,
// except on the first pass after startup.
func (m *Monitor) Poll(ctx context.Context, postMidnight bool) error {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	started := m.opts.Now()
	today := m.Today()

	ctx, cancel := context.WithTimeout(ctx, m.opts.PassTimeout)
	defer cancel()

	m.mu.RLock()
	current := m.bookings
	firstRun := m.firstRun
	if !m.lastDay.IsZero() && today.After(m.lastDay) {
		postMidnight = true
	}
	m.mu.RUnlock()

	appLog.Debug("pass started", "today", model.DateKey(today), "post_midnight", postMidnight, "first_run", firstRun)

	fetched, err := m.opts.Source.Fetch(ctx, today)
	if err != nil {
		err = fmt.Errorf("monitor: fetch: %w", err)
		m.finish(started, metrics.ResultError, 0, err)
		return err
	}

	if fetched.Unchanged && !firstRun {
		m.mu.Lock()
		m.lastDay = today
		m.mu.Unlock()
		appLog.Info("pass skipped, calendar unchanged", "today", model.DateKey(today))
		m.finish(started, metrics.ResultUnchanged, 0, nil)
		return nil
	}

	res := diff.Apply(current, fetched.Calendar, diff.Options{
		Today:        today,
		Now:          started,
		PostMidnight: postMidnight,
		FirstRun:     firstRun,
		NewID:        m.opts.NewID,
	})

	m.mu.Lock()
	m.bookings = res.Bookings
	m.firstRun = false
	m.lastDay = today
	m.mu.Unlock()

	m.opts.Metrics.ObserveEvents(res.Events)
	m.opts.Metrics.SetBookings(res.Bookings, today)
	m.debouncer.Add(res.Events...)

	result := metrics.ResultUnchanged
	if res.Changed() {
		result = metrics.ResultChanged
	}
	m.finish(started, result, len(res.Events), nil)

	appLog.Info("pass finished",
		"today", model.DateKey(today),
		"post_midnight", postMidnight,
		"bookings", len(res.Bookings),
		"events", len(res.Events),
	)
	return nil
}

// Flush delivers buffered changes now instead of waiting for the quiet period.
func (m *Monitor) Flush() {
	m.debouncer.Flush()
}

// MorningCheck notifies about guests checking out or in today.
func (m *Monitor) MorningCheck(ctx context.Context) error {
	today := m.Today()
	msg, ok := notify.Turnover(m.Bookings(), today)
	if !ok {
		appLog.Debug("no guest change today", "today", model.DateKey(today))
		return nil
	}
	return m.opts.Dispatcher.Deliver(ctx, []notify.Message{msg}, "")
}

// Bookings returns a copy of every tracked booking, past ones included.
func (m *Monitor) Bookings() []model.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Booking, len(m.bookings))
	copy(out, m.bookings)
	return out
}

// Status reports the last pass along with current counts.
func (m *Monitor) Status() Status {
	today := m.Today()

	m.mu.RLock()
	st := m.status
	for _, b := range m.bookings {
		if b.LastNight.Before(today) {
			continue
		}
		if b.IsBlockedOff {
			st.Blocked++
		} else {
			st.Bookings++
		}
	}
	m.mu.RUnlock()

	st.Pending = m.debouncer.Pending()
	return st
}

func (m *Monitor) finish(started time.Time, result string, events int, err error) {
	m.opts.Metrics.ObservePass(result, m.opts.Now().Sub(started), started)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastPass = started
	m.status.LastResult = result
	m.status.LastEvents = events
	if err != nil {
		m.status.LastError = err.Error()
		appLog.Error("pass failed", err)
		return
	}
	m.status.LastError = ""
	m.status.LastSuccess = started
}

// deliver is the debouncer's flush: persist first, then notify.
func (m *Monitor) deliver(events []model.ChangeEvent) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	bookings := m.Bookings()
	if err := m.opts.Store.Save(bookings); err != nil {
		appLog.Error("persist bookings failed", err, "bookings", len(bookings))
	}

	msgs := notify.Group(events)
	if len(msgs) == 0 {
		appLog.Debug("flush produced no guest-facing messages", "events", len(events))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := m.opts.Dispatcher.Deliver(ctx, msgs, notify.Footer(bookings, m.Today())); err != nil {
		appLog.Warn("some notifications were not delivered", "messages", len(msgs), "error", err.Error())
	}
}
