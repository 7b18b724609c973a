package diff

import (
	"time"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// reconcile walks every known booking against the calendar, dropping
// cancellations and narrowing or reclassifying the rest, then claims the nights
// of every survivor.
func (p *pass) reconcile() {
	// Decide which bookings the fetched window can judge before any of them
	// extends the calendar.
	var inRange []*model.Booking
	kept := make([]*model.Booking, 0, len(p.bookings))
	for _, b := range p.bookings {
		past := !p.opts.Today.IsZero() && b.LastNight.Before(p.opts.Today)
		if past || !p.cal.Overlaps(b.FirstNight, b.LastNight) {
			kept = append(kept, b)
			continue
		}
		inRange = append(inRange, b)
	}

	for _, b := range inRange {
		// A booking running past either edge of the fetched window would look
		// half-cancelled; pretend the missing nights are still booked.
		p.cal.ExtendTo(b.FirstNight, b.LastNight)

		if p.reconcileOne(b) {
			kept = append(kept, b)
		}
	}
	p.bookings = kept

	for _, b := range kept {
		p.claim(b)
	}
}

// reconcileOne returns false when b was cancelled and must leave the store.
func (p *pass) reconcileOne(b *model.Booking) bool {
	// Synthetic nights only keep an edge from looking cancelled. When every
	// fetched night is free there is nothing left to resize onto.
	if p.fetchedNightsFree(b) || (!p.cal.Booked(b.FirstNight) && !p.cal.Booked(b.LastNight)) {
		p.emit(model.ChangeCancelled, b, nil)
		return false
	}

	newFirst, newLast := b.FirstNight, b.LastNight
	transitions := 0
	prev := p.cal.Booked(b.FirstNight)
	for d := model.AddDays(b.FirstNight, 1); !d.After(b.LastNight); d = model.AddDays(d, 1) {
		cur := p.cal.Booked(d)
		switch {
		case prev && !cur:
			newLast = model.AddDays(d, -1)
			transitions++
		case !prev && cur:
			newFirst = d
			transitions++
		}
		prev = cur
	}

	switch transitions {
	case 0:
		return true
	case 1:
		p.resize(b, newFirst, newLast)
		return true
	default:
		// Free nights inside the range: only a clean shrink from one end is
		// trusted, anything else counts as a cancellation.
		appLog.Debug("diff: interleaved nights inside booking, treating as cancelled",
			"booking", b.String(), "transitions", transitions)
		p.emit(model.ChangeCancelled, b, nil)
		return false
	}
}

// resize moves b's boundaries to [first, last]. A guest booking that no longer
// meets the minimum stay becomes blocked-off and is reported as cancelled.
func (p *pass) resize(b *model.Booking, first, last time.Time) {
	nights := model.DaysBetween(first, last) + 1
	kind := model.ChangeShortened
	if nights > b.Nights() {
		kind = model.ChangeExtended
	}

	fc := &model.FieldChange{}
	if !first.Equal(b.FirstNight) {
		old := b.FirstNight
		fc.OldFirstNight = &old
	}
	if !last.Equal(b.LastNight) {
		old := b.LastNight
		fc.OldLastNight = &old
	}

	minNights := p.minNightsAt(first)
	if !b.IsBlockedOff && nights < minNights {
		p.emit(model.ChangeCancelled, b, nil)
		b.FirstNight, b.LastNight = first, last
		b.IsBlockedOff = true
		appLog.Debug("diff: remainder below minimum stay, now blocked-off",
			"booking", b.String(), "min_nights", minNights)
		return
	}

	b.FirstNight, b.LastNight = first, last
	p.emit(kind, b, fc)
}

// fetchedNightsFree reports whether none of b's fetched nights is booked.
func (p *pass) fetchedNightsFree(b *model.Booking) bool {
	for _, day := range p.cal.Days() {
		if day.Synthetic || !b.Contains(day.Date) {
			continue
		}
		if day.Booked {
			return false
		}
	}
	return true
}
