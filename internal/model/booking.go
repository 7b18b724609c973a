package model

import (
	"fmt"
	"sort"
	"time"
)

// Booking is one contiguous occupied range of nights.
//
// IsBlockedOff separates operator holds from guest reservations. Both are
// tracked the same way; blocked-off periods are kept out of guest-facing
// notifications.
type Booking struct {
	ID           string     `json:"id"`
	FirstNight   time.Time  `json:"first_night"`
	LastNight    time.Time  `json:"last_night"`
	IsBlockedOff bool       `json:"is_blocked_off"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// CheckIn is the arrival date.
func (b Booking) CheckIn() time.Time { return b.FirstNight }

// CheckOut is the departure date, the morning after the last night.
func (b Booking) CheckOut() time.Time { return AddDays(b.LastNight, 1) }

// Nights is the inclusive length of the stay.
func (b Booking) Nights() int { return DaysBetween(b.FirstNight, b.LastNight) + 1 }

// Contains reports whether night d falls inside the booking.
func (b Booking) Contains(d time.Time) bool {
	return !d.Before(b.FirstNight) && !d.After(b.LastNight)
}

// Validate checks the FirstNight <= LastNight invariant and non-zero dates.
func (b Booking) Validate() error {
	if b.FirstNight.IsZero() || b.LastNight.IsZero() {
		return fmt.Errorf("booking %s: missing date", b.ID)
	}
	if b.FirstNight.After(b.LastNight) {
		return fmt.Errorf("booking %s: first night %s after last night %s",
			b.ID, DateKey(b.FirstNight), DateKey(b.LastNight))
	}
	return nil
}

func (b Booking) String() string {
	kind := "booking"
	if b.IsBlockedOff {
		kind = "blocked-off"
	}
	return fmt.Sprintf("%s %s..%s (%d nights)", kind, DateKey(b.FirstNight), DateKey(b.LastNight), b.Nights())
}

// SortBookings orders by first night, then last night.
func SortBookings(bs []Booking) {
	sort.SliceStable(bs, func(i, j int) bool {
		if !bs[i].FirstNight.Equal(bs[j].FirstNight) {
			return bs[i].FirstNight.Before(bs[j].FirstNight)
		}
		return bs[i].LastNight.Before(bs[j].LastNight)
	})
}

// Active returns the guest bookings whose last night is on or after today.
func Active(bs []Booking, today time.Time) []Booking {
	out := make([]Booking, 0, len(bs))
	for _, b := range bs {
		if b.IsBlockedOff || b.LastNight.Before(today) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ChangeKind classifies a change event.
type ChangeKind string

const (
	ChangeNew       ChangeKind = "new"
	ChangeCancelled ChangeKind = "cancelled"
	ChangeExtended  ChangeKind = "extended"
	ChangeShortened ChangeKind = "shortened"
)

// FieldChange carries the previous boundary values of a length change.
// A nil pointer means that boundary did not move.
type FieldChange struct {
	OldFirstNight *time.Time `json:"old_first_night,omitempty"`
	OldLastNight  *time.Time `json:"old_last_night,omitempty"`
}

// ChangeEvent is produced by one diff pass. Booking is a value snapshot taken
// when the event was created; later store mutations do not reach it.
type ChangeEvent struct {
	Kind    ChangeKind   `json:"kind"`
	Booking Booking      `json:"booking"`
	Field   *FieldChange `json:"field_change,omitempty"`
}
