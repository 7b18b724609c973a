// Package diff turns a stored booking list plus a freshly fetched availability
// calendar into an updated booking list and the changes between the two.
//
// A pass is synchronous and has no side effects beyond debug logging: the
// caller owns fetching, persistence and notification delivery. Passes must not
// run concurrently against the same booking list.
package diff

import (
	"time"

	"github.com/google/uuid"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// Options carries everything a pass would otherwise read from ambient state.
type Options struct {
	// Today is the current calendar date. Bookings that ended before Today are
	// never reconciled and booked days before Today are never scanned.
	Today time.Time

	// Now stamps CreatedAt on bookings discovered by this pass.
	Now time.Time

	// PostMidnight marks a pass that runs right after a day boundary. Every
	// newly found run is then recorded as blocked-off.
	PostMidnight bool

	// FirstRun marks the first pass after startup. Bookings found on the first
	// pass existed before we started watching, so they get no CreatedAt.
	FirstRun bool

	// NewID generates booking identifiers. Defaults to random UUIDs.
	NewID func() string
}

// Result is the outcome of one pass.
type Result struct {
	// Bookings is the updated list, sorted by first night.
	Bookings []model.Booking
	// Events lists every change in the order it was detected.
	Events []model.ChangeEvent
}

// Changed reports whether the pass produced any event.
func (r Result) Changed() bool { return len(r.Events) > 0 }

type pass struct {
	cal      *model.Calendar
	opts     Options
	bookings []*model.Booking
	claims   map[string]*model.Booking
	events   []model.ChangeEvent
}

// Apply runs one diff pass of bookings against cal.
//
// The input slice is not modified. cal may be extended with synthetic days
// and must not be reused afterwards. An empty calendar is a no-op pass.
func Apply(bookings []model.Booking, cal *model.Calendar, opts Options) Result {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if !opts.Today.IsZero() {
		opts.Today = model.DateOf(opts.Today)
	}

	p := &pass{
		cal:    cal,
		opts:   opts,
		claims: make(map[string]*model.Booking),
	}
	for i := range bookings {
		b := bookings[i]
		p.bookings = append(p.bookings, &b)
	}

	if cal.Len() == 0 {
		appLog.Debug("diff: empty calendar, nothing to do", "bookings", len(bookings))
		return p.result()
	}

	p.reconcile()

	runs, gaps := p.scan()
	p.commit(runs, gaps)

	res := p.result()
	appLog.Debug("diff: pass complete",
		"calendar_first", model.DateKey(cal.First()),
		"calendar_last", model.DateKey(cal.Last()),
		"bookings", len(res.Bookings),
		"events", len(res.Events),
	)
	return res
}

// commit records the runs found by scan. Post-midnight passes, and passes
// where the whole calendar turned booked at once, record everything as
// blocked-off instead of trusting it as guest activity.
func (p *pass) commit(runs, gaps []span) {
	pending := len(runs) + len(gaps)
	if pending == 0 {
		return
	}

	fullyBooked := p.cal.FullyBooked()
	if p.opts.PostMidnight || (fullyBooked && pending > 1) {
		appLog.Debug("diff: recording all new runs as blocked-off",
			"post_midnight", p.opts.PostMidnight,
			"fully_booked", fullyBooked,
			"pending", pending,
		)
		for _, s := range mergeSpans(runs, gaps) {
			p.add(s, true)
		}
		return
	}

	for _, s := range runs {
		p.add(s, false)
	}
	for _, g := range gaps {
		p.resolveGap(g)
	}
}

// add creates a booking for s, claims its nights and emits New.
func (p *pass) add(s span, blockedOff bool) *model.Booking {
	b := &model.Booking{
		ID:           p.opts.NewID(),
		FirstNight:   s.first,
		LastNight:    s.last,
		IsBlockedOff: blockedOff,
	}
	if !p.opts.FirstRun && !p.opts.Now.IsZero() {
		now := p.opts.Now
		b.CreatedAt = &now
	}
	p.bookings = append(p.bookings, b)
	p.claim(b)
	p.emit(model.ChangeNew, b, nil)
	return b
}

func (p *pass) claim(b *model.Booking) {
	for d := b.FirstNight; !d.After(b.LastNight); d = model.AddDays(d, 1) {
		p.claims[model.DateKey(d)] = b
	}
}

func (p *pass) claimedBy(d time.Time) *model.Booking {
	return p.claims[model.DateKey(d)]
}

// emit snapshots b by value so that later mutations in this pass do not leak
// into an event that is already queued.
func (p *pass) emit(kind model.ChangeKind, b *model.Booking, fc *model.FieldChange) {
	ev := model.ChangeEvent{Kind: kind, Booking: *b, Field: fc}
	p.events = append(p.events, ev)
	appLog.Debug("diff: change",
		"kind", string(kind),
		"booking", b.String(),
		"id", b.ID,
		"blocked_off", b.IsBlockedOff,
	)
}

func (p *pass) minNightsAt(d time.Time) int {
	day, ok := p.cal.Day(d)
	if !ok || day.MinNights < 1 {
		return 1
	}
	return day.MinNights
}

func (p *pass) result() Result {
	out := make([]model.Booking, 0, len(p.bookings))
	for _, b := range p.bookings {
		out = append(out, *b)
	}
	model.SortBookings(out)
	return Result{Bookings: out, Events: p.events}
}
