package notify

import (
	"fmt"
	"strings"
	"time"

	"bookwatch/internal/model"
)

// Message is one notification ready for delivery.
type Message struct {
	Kind    model.ChangeKind
	Subject string
	Body    string
	Footer  string
	Events  []model.ChangeEvent
}

// Text renders body and footer as plain text.
func (m Message) Text() string {
	if m.Footer == "" {
		return m.Body
	}
	return m.Body + "\n\n" + m.Footer
}

const dayLayout = "Mon 02 Jan 2006"

var kindOrder = []model.ChangeKind{
	model.ChangeNew,
	model.ChangeCancelled,
	model.ChangeExtended,
	model.ChangeShortened,
}

// Group turns one flushed buffer into messages.
//
// Events on blocked-off periods are dropped. Events carrying a field change
// each become their own message, since each has distinct before/after dates.
// The rest are grouped into one message per kind.
func Group(events []model.ChangeEvent) []Message {
	var (
		individual []Message
		byKind     = make(map[model.ChangeKind][]model.ChangeEvent)
	)
	for _, ev := range events {
		if ev.Booking.IsBlockedOff {
			continue
		}
		if ev.Field != nil {
			individual = append(individual, fieldMessage(ev))
			continue
		}
		byKind[ev.Kind] = append(byKind[ev.Kind], ev)
	}

	out := make([]Message, 0, len(byKind)+len(individual))
	for _, k := range kindOrder {
		evs := byKind[k]
		if len(evs) == 0 {
			continue
		}
		out = append(out, groupMessage(k, evs))
	}
	return append(out, individual...)
}

func groupMessage(kind model.ChangeKind, evs []model.ChangeEvent) Message {
	var b strings.Builder
	for i, ev := range evs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(describe(ev.Booking))
	}
	return Message{
		Kind:    kind,
		Subject: subject(kind, len(evs)),
		Body:    b.String(),
		Events:  evs,
	}
}

func fieldMessage(ev model.ChangeEvent) Message {
	before := ev.Booking
	if ev.Field.OldFirstNight != nil {
		before.FirstNight = *ev.Field.OldFirstNight
	}
	if ev.Field.OldLastNight != nil {
		before.LastNight = *ev.Field.OldLastNight
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Was: %s\n", describe(before))
	fmt.Fprintf(&b, "Now: %s", describe(ev.Booking))
	return Message{
		Kind:    ev.Kind,
		Subject: subject(ev.Kind, 1),
		Body:    b.String(),
		Events:  []model.ChangeEvent{ev},
	}
}

func subject(kind model.ChangeKind, n int) string {
	noun := "booking"
	if n > 1 {
		noun = fmt.Sprintf("%d bookings", n)
	}
	switch kind {
	case model.ChangeNew:
		if n > 1 {
			return fmt.Sprintf("%d new bookings", n)
		}
		return "New booking"
	case model.ChangeCancelled:
		return capitalize(noun) + " cancelled"
	case model.ChangeExtended:
		return capitalize(noun) + " extended"
	case model.ChangeShortened:
		return capitalize(noun) + " shortened"
	default:
		return capitalize(noun) + " changed"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func describe(b model.Booking) string {
	nights := "nights"
	if b.Nights() == 1 {
		nights = "night"
	}
	return fmt.Sprintf("check-in %s, check-out %s (%d %s)",
		b.CheckIn().Format(dayLayout), b.CheckOut().Format(dayLayout), b.Nights(), nights)
}

// Footer summarizes the active guest bookings from today on.
func Footer(bookings []model.Booking, today time.Time) string {
	active := model.Active(bookings, today)
	if len(active) == 0 {
		return "No upcoming bookings."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Upcoming bookings (%d):", len(active))
	for _, bk := range active {
		b.WriteString("\n- ")
		b.WriteString(describe(bk))
	}
	return b.String()
}

// Turnover builds the morning summary of guests leaving and arriving today.
// ok is false when nobody checks in or out.
func Turnover(bookings []model.Booking, today time.Time) (msg Message, ok bool) {
	var out, in []model.Booking
	for _, b := range bookings {
		if b.IsBlockedOff {
			continue
		}
		if b.CheckOut().Equal(today) {
			out = append(out, b)
		}
		if b.CheckIn().Equal(today) {
			in = append(in, b)
		}
	}

	switch {
	case len(out) > 0 && len(in) > 0:
		msg.Subject = "Guest change today"
	case len(out) > 0:
		msg.Subject = "Check-out today"
	case len(in) > 0:
		msg.Subject = "Check-in today"
	default:
		return Message{}, false
	}

	var b strings.Builder
	for _, bk := range out {
		fmt.Fprintf(&b, "Leaving: %s\n", describe(bk))
	}
	for _, bk := range in {
		fmt.Fprintf(&b, "Arriving: %s\n", describe(bk))
	}
	msg.Body = strings.TrimSuffix(b.String(), "\n")
	return msg, true
}
