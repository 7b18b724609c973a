package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"bookwatch/internal/model"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m.ObservePass(ResultChanged, time.Second, at)
	m.ObservePass(ResultError, time.Second, at.Add(time.Hour))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues(ResultChanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues(ResultError)))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.lastSuccess))

	m.ObserveEvents([]model.ChangeEvent{
		{Kind: model.ChangeNew}, {Kind: model.ChangeNew}, {Kind: model.ChangeCancelled},
	})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.changes.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes.WithLabelValues("cancelled")))

	today := model.MustDate("2024-06-10")
	m.SetBookings([]model.Booking{
		{FirstNight: model.MustDate("2024-06-01"), LastNight: model.MustDate("2024-06-05")},
		{FirstNight: model.MustDate("2024-06-09"), LastNight: model.MustDate("2024-06-12")},
		{FirstNight: model.MustDate("2024-06-20"), LastNight: model.MustDate("2024-06-21"), IsBlockedOff: true},
	}, today)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("guest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("blocked")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePass(ResultChanged, 0, time.Now())
	m.ObserveEvents([]model.ChangeEvent{{Kind: model.ChangeNew}})
	m.SetBookings(nil, time.Now())
}
