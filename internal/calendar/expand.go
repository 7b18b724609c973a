package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// BookedDays expands the unavailable ranges over [today, today+horizon) and
// returns one CalendarDay per date, every day carrying minNights since an iCal
// export has no per-day minimum stay.
func BookedDays(events []Unavailability, today time.Time, horizon, minNights int) []model.CalendarDay {
	today = model.DateOf(today)
	end := model.AddDays(today, horizon)

	booked := make(map[string]bool)
	mark := func(start, stop time.Time) {
		first := model.DateOf(start)
		// The departure date is not a night; a same-day range still holds one.
		last := model.AddDays(model.DateOf(stop), -1)
		if last.Before(first) {
			last = first
		}
		for d := first; !d.After(last); d = model.AddDays(d, 1) {
			if d.Before(today) || !d.Before(end) {
				continue
			}
			booked[model.DateKey(d)] = true
		}
	}

	for _, ev := range events {
		for _, occ := range occurrences(ev, today, end) {
			mark(occ[0], occ[1])
		}
	}

	days := make([]model.CalendarDay, 0, horizon)
	for d := today; d.Before(end); d = model.AddDays(d, 1) {
		days = append(days, model.CalendarDay{
			Date:      d,
			Booked:    booked[model.DateKey(d)],
			MinNights: minNights,
		})
	}
	return days
}

// occurrences returns [start, end) pairs of ev that may touch [from, to).
func occurrences(ev Unavailability, from, to time.Time) [][2]time.Time {
	if ev.RawRRule == "" {
		if ev.End.Before(from) || !ev.Start.Before(to) {
			return nil
		}
		return [][2]time.Time{{ev.Start, ev.End}}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	// Widen the window by one duration so an occurrence starting before
	// `from` but still running is included.
	starts := set.Between(from.Add(-dur), to, true)
	if len(starts) > defaultMaxOccurrencesPerEvent {
		appLog.Warn("expand: occurrence cap reached", "uid", ev.UID, "cap", defaultMaxOccurrencesPerEvent)
		starts = starts[:defaultMaxOccurrencesPerEvent]
	}

	out := make([][2]time.Time, 0, len(starts))
	for _, s := range starts {
		out = append(out, [2]time.Time{s, s.Add(dur)})
	}
	return out
}
