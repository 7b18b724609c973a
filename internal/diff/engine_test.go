package diff

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookwatch/internal/model"
)

var d = model.MustDate

// days builds one CalendarDay per pattern rune starting at start:
// 'B' is booked, anything else is free. Every day gets minNights.
func days(start, pattern string, minNights int) []model.CalendarDay {
	first := d(start)
	out := make([]model.CalendarDay, 0, len(pattern))
	for i, r := range pattern {
		out = append(out, model.CalendarDay{
			Date:      model.AddDays(first, i),
			Booked:    r == 'B',
			MinNights: minNights,
		})
	}
	return out
}

func calendar(t *testing.T, ds []model.CalendarDay) *model.Calendar {
	t.Helper()
	c, err := model.NewCalendar(ds)
	require.NoError(t, err)
	return c
}

func booking(id, first, last string) model.Booking {
	return model.Booking{ID: id, FirstNight: d(first), LastNight: d(last)}
}

func opts() Options {
	n := 0
	return Options{
		Today: d("2024-06-01"),
		Now:   time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		NewID: func() string {
			n++
			return fmt.Sprintf("new-%d", n)
		},
	}
}

func kinds(evs []model.ChangeEvent) []model.ChangeKind {
	out := make([]model.ChangeKind, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Kind)
	}
	return out
}

func TestApply_EmptyCalendarIsNoop(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, nil), opts())

	assert.Empty(t, res.Events)
	assert.Equal(t, in, res.Bookings)
}

func TestApply_Idempotent(t *testing.T) {
	pattern := "BBBBB...BB.BBB....BBBBBBB."
	first := Apply(nil, calendar(t, days("2024-06-01", pattern, 2)), opts())
	require.NotEmpty(t, first.Events)

	second := Apply(first.Bookings, calendar(t, days("2024-06-01", pattern, 2)), opts())

	assert.Empty(t, second.Events)
	assert.Equal(t, first.Bookings, second.Bookings)
}

func TestApply_CleanCancellation(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, days("2024-06-01", "..........", 1)), opts())

	require.Len(t, res.Events, 1)
	assert.Equal(t, model.ChangeCancelled, res.Events[0].Kind)
	assert.Equal(t, "a", res.Events[0].Booking.ID)
	assert.Empty(t, res.Bookings)
}

func TestApply_ShrinkFromEnd(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, days("2024-06-01", "BBB.......", 3)), opts())

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.ChangeShortened, ev.Kind)
	assert.Equal(t, d("2024-06-03"), ev.Booking.LastNight)
	require.NotNil(t, ev.Field)
	require.NotNil(t, ev.Field.OldLastNight)
	assert.Equal(t, d("2024-06-05"), *ev.Field.OldLastNight)
	assert.Nil(t, ev.Field.OldFirstNight)

	require.Len(t, res.Bookings, 1)
	assert.Equal(t, d("2024-06-03"), res.Bookings[0].LastNight)
	assert.False(t, res.Bookings[0].IsBlockedOff)
}

func TestApply_ShrinkFromStart(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, days("2024-06-01", "..BBB.....", 2)), opts())

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.ChangeShortened, ev.Kind)
	require.NotNil(t, ev.Field.OldFirstNight)
	assert.Equal(t, d("2024-06-01"), *ev.Field.OldFirstNight)
	assert.Equal(t, d("2024-06-03"), res.Bookings[0].FirstNight)
}

func TestApply_InterleavedNightsCancel(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, days("2024-06-01", "BB.BB.....", 1)), opts())

	// The cancelled booking's nights reappear as unclaimed runs.
	require.NotEmpty(t, res.Events)
	assert.Equal(t, model.ChangeCancelled, res.Events[0].Kind)
	for _, b := range res.Bookings {
		assert.NotEqual(t, "a", b.ID)
	}
}

func TestApply_ShrinkBelowMinimumBecomesBlockedOff(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, days("2024-06-01", "BB........", 3)), opts())

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.ChangeCancelled, ev.Kind)
	// The snapshot predates the reclassification.
	assert.False(t, ev.Booking.IsBlockedOff)
	assert.Equal(t, d("2024-06-05"), ev.Booking.LastNight)

	require.Len(t, res.Bookings, 1)
	got := res.Bookings[0]
	assert.True(t, got.IsBlockedOff)
	assert.Equal(t, d("2024-06-02"), got.LastNight)
}

func TestApply_BlockedOffShrinkIgnoresMinimum(t *testing.T) {
	b := booking("a", "2024-06-01", "2024-06-05")
	b.IsBlockedOff = true

	res := Apply([]model.Booking{b}, calendar(t, days("2024-06-01", "B.........", 5)), opts())

	require.Len(t, res.Events, 1)
	assert.Equal(t, model.ChangeShortened, res.Events[0].Kind)
	assert.True(t, res.Events[0].Booking.IsBlockedOff)
	assert.Equal(t, d("2024-06-01"), res.Bookings[0].LastNight)
}

func TestApply_NewBookingAndGapThreshold(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		blocked bool
		first   string
		last    string
	}{
		{name: "three nights qualify", pattern: "...BBB....", first: "2024-06-04", last: "2024-06-06"},
		// Orphaned gap: promoted to a standalone guest booking.
		{name: "two nights orphaned", pattern: "...BB.....", first: "2024-06-04", last: "2024-06-05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Apply(nil, calendar(t, days("2024-06-01", tt.pattern, 3)), opts())

			require.Len(t, res.Events, 1)
			assert.Equal(t, model.ChangeNew, res.Events[0].Kind)
			require.Len(t, res.Bookings, 1)
			got := res.Bookings[0]
			assert.Equal(t, tt.blocked, got.IsBlockedOff)
			assert.Equal(t, d(tt.first), got.FirstNight)
			assert.Equal(t, d(tt.last), got.LastNight)
		})
	}
}

func TestApply_OrphanedSingleNight(t *testing.T) {
	res := Apply(nil, calendar(t, days("2024-06-01", "....B.....", 1)), opts())

	require.Len(t, res.Bookings, 1)
	assert.False(t, res.Bookings[0].IsBlockedOff)
	assert.Equal(t, 1, res.Bookings[0].Nights())
	assert.Equal(t, []model.ChangeKind{model.ChangeNew}, kinds(res.Events))
}

func TestApply_SandwichedGapIsBlockedOff(t *testing.T) {
	in := []model.Booking{
		booking("a", "2024-06-05", "2024-06-10"),
		booking("b", "2024-06-13", "2024-06-15"),
	}
	cal := calendar(t, days("2024-06-05", "BBBBBBBBBBB.....", 3))

	res := Apply(in, cal, opts())

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.ChangeNew, ev.Kind)
	assert.True(t, ev.Booking.IsBlockedOff)
	assert.Equal(t, d("2024-06-11"), ev.Booking.FirstNight)
	assert.Equal(t, d("2024-06-12"), ev.Booking.LastNight)

	require.Len(t, res.Bookings, 3)
	assert.Equal(t, d("2024-06-10"), res.Bookings[0].LastNight)
	assert.Equal(t, d("2024-06-13"), res.Bookings[2].FirstNight)
}

func TestApply_GapExtendsPrecedingBooking(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}

	res := Apply(in, calendar(t, days("2024-06-01", "BBBBBBB...", 3)), opts())

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.ChangeExtended, ev.Kind)
	assert.Equal(t, d("2024-06-07"), ev.Booking.LastNight)
	require.NotNil(t, ev.Field.OldLastNight)
	assert.Equal(t, d("2024-06-05"), *ev.Field.OldLastNight)

	require.Len(t, res.Bookings, 1)
	assert.Equal(t, d("2024-06-07"), res.Bookings[0].LastNight)
}

func TestApply_GapExtendsSucceedingBooking(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-05", "2024-06-09")}

	res := Apply(in, calendar(t, days("2024-06-01", "...BBBBBB...", 3)), opts())

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, model.ChangeExtended, ev.Kind)
	require.NotNil(t, ev.Field.OldFirstNight)
	assert.Equal(t, d("2024-06-05"), *ev.Field.OldFirstNight)
	assert.Equal(t, d("2024-06-04"), res.Bookings[0].FirstNight)
}

func TestApply_GapNextToBlockedOffIsNotMerged(t *testing.T) {
	a := booking("a", "2024-06-01", "2024-06-05")
	a.IsBlockedOff = true

	res := Apply([]model.Booking{a}, calendar(t, days("2024-06-01", "BBBBBBB...", 3)), opts())

	require.Len(t, res.Bookings, 2)
	assert.Equal(t, d("2024-06-05"), res.Bookings[0].LastNight)
	assert.False(t, res.Bookings[1].IsBlockedOff)
	assert.Equal(t, d("2024-06-06"), res.Bookings[1].FirstNight)
}

func TestApply_PostMidnightRecordsBlockedOff(t *testing.T) {
	o := opts()
	o.PostMidnight = true

	res := Apply(nil, calendar(t, days("2024-06-01", "..BBBB..B.", 1)), o)

	require.Len(t, res.Bookings, 2)
	for _, b := range res.Bookings {
		assert.True(t, b.IsBlockedOff, b.String())
	}
	assert.Equal(t, []model.ChangeKind{model.ChangeNew, model.ChangeNew}, kinds(res.Events))
}

func TestApply_FullyBookedBurstRecordsBlockedOff(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-04", "2024-06-06")}

	res := Apply(in, calendar(t, days("2024-06-01", "BBBBBBBBB", 1)), opts())

	require.Len(t, res.Bookings, 3)
	assert.True(t, res.Bookings[0].IsBlockedOff)
	assert.False(t, res.Bookings[1].IsBlockedOff)
	assert.True(t, res.Bookings[2].IsBlockedOff)
}

func TestApply_FullyBookedSingleRunIsGuest(t *testing.T) {
	res := Apply(nil, calendar(t, days("2024-06-01", "BBBB", 1)), opts())

	require.Len(t, res.Bookings, 1)
	assert.False(t, res.Bookings[0].IsBlockedOff)
}

func TestApply_BookingStraddlingWindowStart(t *testing.T) {
	in := []model.Booking{booking("a", "2024-05-28", "2024-06-03")}

	res := Apply(in, calendar(t, days("2024-06-01", "BBB.......", 1)), opts())

	assert.Empty(t, res.Events)
	assert.Equal(t, in, res.Bookings)
}

func TestApply_CancelledStraddlingBookingLeavesNoPhantomRun(t *testing.T) {
	o := opts()
	o.Today = d("2024-05-25")
	in := []model.Booking{booking("a", "2024-05-28", "2024-06-05")}

	// Synthetic nights 05-28..05-31 stay booked but interleave with free
	// fetched nights, so the booking is cancelled.
	res := Apply(in, calendar(t, days("2024-06-01", "B.B.B.....", 1)), o)

	assert.Equal(t, model.ChangeCancelled, res.Events[0].Kind)
	for _, b := range res.Bookings {
		assert.False(t, b.FirstNight.Before(d("2024-06-01")), b.String())
	}
}

func TestApply_OutOfRangeBookingUntouched(t *testing.T) {
	in := []model.Booking{
		booking("past", "2024-05-01", "2024-05-03"),
		booking("far", "2024-09-01", "2024-09-03"),
	}

	res := Apply(in, calendar(t, days("2024-06-01", "..........", 1)), opts())

	assert.Empty(t, res.Events)
	assert.Equal(t, in, res.Bookings)
}

func TestApply_CreatedAt(t *testing.T) {
	o := opts()
	res := Apply(nil, calendar(t, days("2024-06-01", ".BB.", 1)), o)
	require.Len(t, res.Bookings, 1)
	require.NotNil(t, res.Bookings[0].CreatedAt)
	assert.Equal(t, o.Now, *res.Bookings[0].CreatedAt)

	o = opts()
	o.FirstRun = true
	res = Apply(nil, calendar(t, days("2024-06-01", ".BB.", 1)), o)
	require.Len(t, res.Bookings, 1)
	assert.Nil(t, res.Bookings[0].CreatedAt)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-01", "2024-06-05")}
	orig := append([]model.Booking(nil), in...)

	Apply(in, calendar(t, days("2024-06-01", "BBB.......", 1)), opts())

	assert.Equal(t, orig, in)
}

func TestScan_RunJudgedByFollowingDay(t *testing.T) {
	ds := days("2024-06-01", "BB.BB", 1)
	// The day ending the first run demands three nights.
	ds[2].MinNights = 3
	// The open run at the end is judged by its own first day.
	ds[3].MinNights = 2

	p := &pass{cal: calendar(t, ds), opts: opts(), claims: map[string]*model.Booking{}}
	runs, gaps := p.scan()

	require.Len(t, gaps, 1)
	assert.Equal(t, d("2024-06-01"), gaps[0].first)
	assert.Equal(t, 3, gaps[0].minNights)

	require.Len(t, runs, 1)
	assert.Equal(t, d("2024-06-04"), runs[0].first)
	assert.Equal(t, 2, runs[0].minNights)
}

func TestApply_BookingStraddlingWindowEnd(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-08", "2024-06-15")}

	res := Apply(in, calendar(t, days("2024-06-01", ".......BBB", 1)), opts())

	assert.Empty(t, res.Events)
	assert.Equal(t, in, res.Bookings)
}

func TestApply_CancelledBookingPastWindowEndIsCancelledOnce(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-08", "2024-06-15")}

	// The window rolls forward a day at a time while none of the fetched
	// nights is booked any more.
	var all []model.ChangeEvent
	for i := 0; i < 6; i++ {
		start := model.AddDays(d("2024-06-01"), i)
		o := opts()
		o.Today = start

		res := Apply(in, calendar(t, days(model.DateKey(start), "..........", 1)), o)
		all = append(all, res.Events...)
		in = res.Bookings
	}

	require.Equal(t, []model.ChangeKind{model.ChangeCancelled}, kinds(all))
	assert.Equal(t, d("2024-06-15"), all[0].Booking.LastNight)
	assert.Empty(t, in)
}

func TestApply_ShrinkNeverLandsOnUnfetchedNights(t *testing.T) {
	in := []model.Booking{booking("a", "2024-06-09", "2024-06-12")}

	res := Apply(in, calendar(t, days("2024-06-01", "..........", 1)), opts())

	assert.Equal(t, []model.ChangeKind{model.ChangeCancelled}, kinds(res.Events))
	assert.Empty(t, res.Bookings)
}

func TestScan_RunBeforeSyntheticDayJudgedByOwnFirstDay(t *testing.T) {
	ds := days("2024-06-01", "....B", 3)
	p := &pass{cal: calendar(t, ds), opts: opts(), claims: map[string]*model.Booking{}}
	p.cal.ExtendTo(d("2024-06-01"), d("2024-06-07"))

	runs, gaps := p.scan()

	assert.Empty(t, runs)
	require.Len(t, gaps, 1)
	assert.Equal(t, d("2024-06-05"), gaps[0].first)
	assert.Equal(t, 3, gaps[0].minNights)
}
