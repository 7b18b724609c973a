package model

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrDateGap is returned when calendar input does not cover a contiguous range.
var ErrDateGap = errors.New("calendar: date coverage has a gap")

// CalendarDay is one fetched availability record.
type CalendarDay struct {
	Date   time.Time `json:"date"`
	Booked bool      `json:"booked"`
	// MinNights is the minimum stay for a check-in on Date. Always >= 1.
	MinNights int `json:"min_nights"`
	// Synthetic marks a day added by ExtendTo rather than fetched.
	Synthetic bool `json:"-"`
}

// Calendar is an ordered, gap-free run of CalendarDay keyed by date.
//
// A Calendar is built fresh for every poll and discarded afterwards. The diff
// engine may extend it at either end with synthetic booked days, so callers
// must not share one Calendar between passes.
type Calendar struct {
	days  []CalendarDay
	index map[string]int
}

// NewCalendar sorts and deduplicates days (the last record for a date wins)
// and verifies that the result has no holes in its date coverage.
// An empty input yields an empty, valid Calendar.
func NewCalendar(days []CalendarDay) (*Calendar, error) {
	byKey := make(map[string]CalendarDay, len(days))
	for _, d := range days {
		d.Date = DateOf(d.Date)
		if d.MinNights < 1 {
			d.MinNights = 1
		}
		byKey[DateKey(d.Date)] = d
	}

	sorted := make([]CalendarDay, 0, len(byKey))
	for _, d := range byKey {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Date.Equal(AddDays(sorted[i-1].Date, 1)) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrDateGap,
				DateKey(sorted[i-1].Date), DateKey(sorted[i].Date))
		}
	}

	c := &Calendar{days: sorted}
	c.reindex()
	return c, nil
}

func (c *Calendar) reindex() {
	c.index = make(map[string]int, len(c.days))
	for i, d := range c.days {
		c.index[DateKey(d.Date)] = i
	}
}

func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.days)
}

func (c *Calendar) First() time.Time { return c.days[0].Date }
func (c *Calendar) Last() time.Time  { return c.days[len(c.days)-1].Date }

// Days returns the records in ascending date order. The slice must not be modified.
func (c *Calendar) Days() []CalendarDay {
	if c == nil {
		return nil
	}
	return c.days
}

// Day looks up the record for d.
func (c *Calendar) Day(d time.Time) (CalendarDay, bool) {
	if c == nil {
		return CalendarDay{}, false
	}
	i, ok := c.index[DateKey(d)]
	if !ok {
		return CalendarDay{}, false
	}
	return c.days[i], true
}

// Booked reports whether d is covered and booked. Uncovered dates read as unbooked.
func (c *Calendar) Booked(d time.Time) bool {
	day, ok := c.Day(d)
	return ok && day.Booked
}

// Overlaps reports whether [first, last] intersects the covered range.
func (c *Calendar) Overlaps(first, last time.Time) bool {
	if c.Len() == 0 {
		return false
	}
	return !last.Before(c.First()) && !first.After(c.Last())
}

// FullyBooked reports whether every fetched (non-synthetic) day is booked.
func (c *Calendar) FullyBooked() bool {
	if c.Len() == 0 {
		return false
	}
	for _, d := range c.days {
		if !d.Booked && !d.Synthetic {
			return false
		}
	}
	return true
}

// ExtendTo grows the calendar so that it covers [first, last], filling new
// dates with synthetic booked days carrying a minimum stay of one night.
// Dates already covered are left untouched.
func (c *Calendar) ExtendTo(first, last time.Time) {
	if c.Len() == 0 {
		return
	}
	first, last = DateOf(first), DateOf(last)

	if first.Before(c.First()) {
		n := DaysBetween(first, c.First())
		head := make([]CalendarDay, 0, n+len(c.days))
		for i := 0; i < n; i++ {
			head = append(head, CalendarDay{Date: AddDays(first, i), Booked: true, MinNights: 1, Synthetic: true})
		}
		c.days = append(head, c.days...)
	}
	if last.After(c.Last()) {
		for d := AddDays(c.Last(), 1); !d.After(last); d = AddDays(d, 1) {
			c.days = append(c.days, CalendarDay{Date: d, Booked: true, MinNights: 1, Synthetic: true})
		}
	}
	c.reindex()
}
