package calendar

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"bookwatch/internal/model"
)

// ExportICS renders guest bookings as all-day events, one per stay, spanning
// check-in to check-out. Blocked-off periods are left out.
func ExportICS(name string, bookings []model.Booking, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//bookwatch//bookings//EN")
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, b := range bookings {
		if b.IsBlockedOff {
			continue
		}
		ev := cal.AddEvent(b.ID + "@bookwatch")
		ev.SetDtStampTime(stamp)
		if b.CreatedAt != nil {
			ev.SetCreatedTime(*b.CreatedAt)
		}
		ev.SetAllDayStartAt(b.CheckIn())
		ev.SetAllDayEndAt(b.CheckOut())
		ev.SetSummary(fmt.Sprintf("Booked (%d nights)", b.Nights()))
		ev.SetDescription(fmt.Sprintf("Check-in %s, check-out %s",
			model.DateKey(b.CheckIn()), model.DateKey(b.CheckOut())))
	}
	return cal.Serialize()
}
