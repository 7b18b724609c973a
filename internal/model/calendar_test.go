package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalendar_SortsAndDedupes(t *testing.T) {
	c, err := NewCalendar([]CalendarDay{
		{Date: MustDate("2024-06-03"), Booked: true, MinNights: 2},
		{Date: MustDate("2024-06-01"), MinNights: 0},
		{Date: MustDate("2024-06-02"), Booked: false, MinNights: 2},
		{Date: MustDate("2024-06-02"), Booked: true, MinNights: 4},
	})
	require.NoError(t, err)

	require.Equal(t, 3, c.Len())
	assert.Equal(t, MustDate("2024-06-01"), c.First())
	assert.Equal(t, MustDate("2024-06-03"), c.Last())

	day, ok := c.Day(MustDate("2024-06-02"))
	require.True(t, ok)
	assert.True(t, day.Booked)
	assert.Equal(t, 4, day.MinNights)

	first, _ := c.Day(MustDate("2024-06-01"))
	assert.Equal(t, 1, first.MinNights)
}

func TestNewCalendar_RejectsGap(t *testing.T) {
	_, err := NewCalendar([]CalendarDay{
		{Date: MustDate("2024-06-01")},
		{Date: MustDate("2024-06-03")},
	})
	require.ErrorIs(t, err, ErrDateGap)
}

func TestCalendar_ExtendTo(t *testing.T) {
	c, err := NewCalendar([]CalendarDay{
		{Date: MustDate("2024-06-01"), MinNights: 3},
		{Date: MustDate("2024-06-02"), MinNights: 3},
	})
	require.NoError(t, err)

	c.ExtendTo(MustDate("2024-05-30"), MustDate("2024-06-04"))

	require.Equal(t, 6, c.Len())
	assert.Equal(t, MustDate("2024-05-30"), c.First())
	assert.Equal(t, MustDate("2024-06-04"), c.Last())
	assert.True(t, c.Booked(MustDate("2024-05-31")))
	assert.True(t, c.Booked(MustDate("2024-06-03")))
	assert.False(t, c.Booked(MustDate("2024-06-01")))

	day, _ := c.Day(MustDate("2024-05-30"))
	assert.True(t, day.Synthetic)
	assert.Equal(t, 1, day.MinNights)
}

func TestCalendar_Overlaps(t *testing.T) {
	c, err := NewCalendar([]CalendarDay{
		{Date: MustDate("2024-06-01")},
		{Date: MustDate("2024-06-02")},
	})
	require.NoError(t, err)

	assert.True(t, c.Overlaps(MustDate("2024-05-28"), MustDate("2024-06-01")))
	assert.True(t, c.Overlaps(MustDate("2024-06-02"), MustDate("2024-06-09")))
	assert.False(t, c.Overlaps(MustDate("2024-06-03"), MustDate("2024-06-05")))
	assert.False(t, c.Overlaps(MustDate("2024-05-25"), MustDate("2024-05-31")))
}

func TestCalendar_FullyBookedIgnoresSynthetic(t *testing.T) {
	c, err := NewCalendar([]CalendarDay{{Date: MustDate("2024-06-01"), Booked: true}})
	require.NoError(t, err)
	c.ExtendTo(MustDate("2024-05-29"), MustDate("2024-06-01"))
	assert.True(t, c.FullyBooked())

	empty, err := NewCalendar(nil)
	require.NoError(t, err)
	assert.False(t, empty.FullyBooked())
	assert.Equal(t, 0, empty.Len())
}

func TestBooking_DerivedValues(t *testing.T) {
	b := Booking{ID: "x", FirstNight: MustDate("2024-06-30"), LastNight: MustDate("2024-07-02")}

	assert.Equal(t, MustDate("2024-06-30"), b.CheckIn())
	assert.Equal(t, MustDate("2024-07-03"), b.CheckOut())
	assert.Equal(t, 3, b.Nights())
	assert.True(t, b.Contains(MustDate("2024-07-01")))
	assert.False(t, b.Contains(MustDate("2024-07-03")))
	assert.NoError(t, b.Validate())

	b.LastNight = MustDate("2024-06-29")
	assert.Error(t, b.Validate())
	assert.Error(t, Booking{}.Validate())
}
