package model

import (
	"time"
)

// DateLayout is the ISO calendar-date form used in config, JSON and logs.
const DateLayout = "2006-01-02"

// Date returns midnight UTC for the given calendar date. All dates handled by
// the engine are normalized this way so that equality and map keys are exact.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its calendar date in t's own location and returns it as
// midnight UTC.
func DateOf(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// MustDate is ParseDate for literals in tests and fixtures.
func MustDate(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// AddDays shifts a normalized date by n calendar days.
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b time.Time) int {
	a, b = DateOf(a), DateOf(b)
	return int(b.Sub(a).Hours() / 24)
}

// DateKey is the map key form of a date.
func DateKey(d time.Time) string {
	return d.Format(DateLayout)
}
