package diff

import (
	"sort"
	"time"

	"bookwatch/internal/model"
)

// span is a run of newly booked nights that no booking owns yet.
type span struct {
	first time.Time
	last  time.Time
	// minNights is the minimum stay the run was judged against.
	minNights int
}

func (s span) nights() int { return model.DaysBetween(s.first, s.last) + 1 }

// scan finds runs of booked, unclaimed days and splits them into runs long
// enough to be bookings and shorter gaps.
//
// A run closed by a following day is judged against that day's minimum stay.
// A run still open at the end of the calendar is judged against its own first
// day. The two rules are not symmetric; see DESIGN.md.
func (p *pass) scan() (runs, gaps []span) {
	var (
		open    bool
		cur     span
		openMin int
	)

	classify := func(s span, minNights int) {
		s.minNights = minNights
		if s.nights() >= minNights {
			runs = append(runs, s)
		} else {
			gaps = append(gaps, s)
		}
	}

	for _, day := range p.cal.Days() {
		if p.free(day) {
			if !open {
				open = true
				cur = span{first: day.Date, last: day.Date}
				openMin = day.MinNights
			} else {
				cur.last = day.Date
			}
			continue
		}
		if open {
			// A synthetic day lies past the fetched calendar, so it ends
			// the run the way the end of the calendar would.
			minNights := day.MinNights
			if day.Synthetic {
				minNights = openMin
			}
			classify(cur, minNights)
			open = false
		}
	}
	if open {
		classify(cur, openMin)
	}
	return runs, gaps
}

// free reports whether day is booked, fetched, current and not yet owned.
func (p *pass) free(day model.CalendarDay) bool {
	if !day.Booked || day.Synthetic {
		return false
	}
	if !p.opts.Today.IsZero() && day.Date.Before(p.opts.Today) {
		return false
	}
	return p.claimedBy(day.Date) == nil
}

// mergeSpans returns runs and gaps together in date order.
func mergeSpans(runs, gaps []span) []span {
	all := make([]span, 0, len(runs)+len(gaps))
	all = append(all, runs...)
	all = append(all, gaps...)
	sort.Slice(all, func(i, j int) bool { return all[i].first.Before(all[j].first) })
	return all
}
