package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appLog "bookwatch/internal/log"
	"bookwatch/internal/model"
)

// availabilityDoc is the listing availability payload: months of day records.
// Consecutive months may overlap at their edges.
type availabilityDoc struct {
	CalendarMonths []struct {
		Month int `json:"month"`
		Year  int `json:"year"`
		Days  []struct {
			CalendarDate string `json:"calendarDate"`
			Available    bool   `json:"available"`
			MinNights    int    `json:"minNights"`
		} `json:"days"`
	} `json:"calendar_months"`
}

// ParseAvailability decodes a day-record payload. Days without a minimum
// stay get defaultMinNights.
func ParseAvailability(body []byte, defaultMinNights int) ([]model.CalendarDay, error) {
	if len(body) == 0 {
		return nil, errors.New("empty availability body")
	}

	var doc availabilityDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}

	var days []model.CalendarDay
	for _, m := range doc.CalendarMonths {
		for _, d := range m.Days {
			date, err := model.ParseDate(d.CalendarDate)
			if err != nil {
				appLog.Warn("availability: skipping day with bad date", "value", d.CalendarDate)
				continue
			}
			minNights := d.MinNights
			if minNights < 1 {
				minNights = defaultMinNights
			}
			days = append(days, model.CalendarDay{
				Date:      date,
				Booked:    !d.Available,
				MinNights: minNights,
			})
		}
	}
	return days, nil
}

type jsonSource struct {
	opts    Options
	fetcher *Fetcher
}

func (s *jsonSource) Fetch(ctx context.Context, today time.Time) (Result, error) {
	fr, err := s.fetcher.Fetch(ctx, s.opts.URL)
	if err != nil {
		return Result{}, err
	}

	days, err := ParseAvailability(fr.Body, s.opts.DefaultMinNights)
	if err != nil {
		return Result{}, err
	}
	cal, err := window(days, today, s.opts.HorizonDays)
	if err != nil {
		return Result{}, err
	}

	appLog.Debug("availability parsed", "days", cal.Len(), "not_modified", fr.NotModified)
	return Result{Calendar: cal, Unchanged: fr.NotModified}, nil
}
