package calendar

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// Unavailability is one VEVENT of an availability export: the unit is not
// bookable from Start (inclusive) to End (exclusive), possibly recurring.
type Unavailability struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
}

// ParseICS extracts the unavailable ranges of an iCal export. Malformed
// events are logged and skipped.
func ParseICS(body []byte) ([]Unavailability, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	out := make([]Unavailability, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "err", perr)
			continue
		}
		out = append(out, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (Unavailability, error) {
	var out Unavailability

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parseICSTime(dtStart.Value)
		if err != nil {
			return out, err
		}
		out.Start = model.DateOf(start)

		// DTEND is exclusive; a missing DTEND means a single day.
		out.End = model.AddDays(out.Start, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && dtEnd.Value != "" {
			end, err := parseICSTime(dtEnd.Value)
			if err != nil {
				return out, err
			}
			out.End = model.DateOf(end)
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, err
		}
		end, err := ve.GetEndAt()
		if err != nil {
			end = start
		}
		out.Start, out.End = start, end
	}

	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// isDateValue reports VALUE=DATE or a bare YYYYMMDD value.
func isDateValue(p *ical.IANAProperty) bool {
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses a basic ICS date or date-time value.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.UTC)
	}
	return time.ParseInLocation("20060102", v, time.UTC)
}

type icalSource struct {
	opts    Options
	fetcher *Fetcher
}

func (s *icalSource) Fetch(ctx context.Context, today time.Time) (Result, error) {
	fr, err := s.fetcher.Fetch(ctx, s.opts.URL)
	if err != nil {
		return Result{}, err
	}

	events, err := ParseICS(fr.Body)
	if err != nil {
		return Result{}, err
	}

	today = model.DateOf(today)
	days := BookedDays(events, today, s.opts.HorizonDays, s.opts.DefaultMinNights)
	cal, err := window(days, today, s.opts.HorizonDays)
	if err != nil {
		return Result{}, err
	}
	return Result{Calendar: cal, Unchanged: fr.NotModified}, nil
}
