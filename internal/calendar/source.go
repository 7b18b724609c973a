// Package calendar acquires the per-day availability snapshot for the watched
// unit and normalizes it into a model.Calendar.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookwatch/internal/model"
)

// ErrEmptyCalendar is returned when a source produced no days at all.
var ErrEmptyCalendar = errors.New("calendar: no days in snapshot")

// Result is one snapshot.
type Result struct {
	Calendar *model.Calendar
	// Unchanged is true when the remote data is identical to the previous
	// fetch. Calendar is still filled in from the cached copy.
	Unchanged bool
}

// Source produces a calendar for today through the configured horizon.
type Source interface {
	Fetch(ctx context.Context, today time.Time) (Result, error)
}

// Kind selects a Source implementation.
type Kind string

const (
	KindJSON    Kind = "json"
	KindICal    Kind = "ics"
	KindBrowser Kind = "browser"
)

// Options configures NewSource.
type Options struct {
	Kind Kind
	URL  string

	// HorizonDays bounds the snapshot to [today, today+HorizonDays).
	HorizonDays int
	// DefaultMinNights fills days whose source carries no minimum stay.
	DefaultMinNights int

	CacheDir string
	Retry    RetryConfig

	// BrowserTimeout bounds a headless browser fetch.
	BrowserTimeout time.Duration
}

// NewSource builds the Source named by opts.Kind.
func NewSource(opts Options) (Source, error) {
	if opts.URL == "" {
		return nil, errors.New("calendar: source URL is required")
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 365
	}
	if opts.DefaultMinNights <= 0 {
		opts.DefaultMinNights = 1
	}

	switch Kind(strings.ToLower(string(opts.Kind))) {
	case KindJSON, "":
		return &jsonSource{opts: opts, fetcher: NewFetcher(opts.CacheDir, opts.Retry)}, nil
	case KindICal:
		return &icalSource{opts: opts, fetcher: NewFetcher(opts.CacheDir, opts.Retry)}, nil
	case KindBrowser:
		return &browserSource{opts: opts}, nil
	default:
		return nil, fmt.Errorf("calendar: unknown source kind %q", opts.Kind)
	}
}

// window trims days to [today, today+horizon) and builds the Calendar.
func window(days []model.CalendarDay, today time.Time, horizon int) (*model.Calendar, error) {
	today = model.DateOf(today)
	end := model.AddDays(today, horizon)

	kept := make([]model.CalendarDay, 0, len(days))
	for _, d := range days {
		date := model.DateOf(d.Date)
		if date.Before(today) || !date.Before(end) {
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		return nil, ErrEmptyCalendar
	}
	return model.NewCalendar(kept)
}
