package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bookwatch/internal/model"
)

// Pass outcomes.
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

// Metrics records poll passes and the resulting booking state.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	passes      *prometheus.CounterVec
	changes     *prometheus.CounterVec
	bookings    *prometheus.GaugeVec
	lastSuccess prometheus.Gauge
	passSeconds prometheus.Histogram
}

// New registers the collectors on reg (the default registerer when nil).
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookwatch",
			Name:      "passes_total",
			Help:      "Poll passes by outcome",
		}, []string{"result"}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookwatch",
			Name:      "changes_total",
			Help:      "Change events emitted by the diff engine, by kind",
		}, []string{"kind"}),
		bookings: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bookwatch",
			Name:      "bookings",
			Help:      "Tracked bookings that have not ended, by type",
		}, []string{"type"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bookwatch",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last pass that fetched a calendar",
		}),
		passSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookwatch",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a poll pass",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
}

// ObservePass records one pass outcome and how long it took.
func (m *Metrics) ObservePass(result string, took time.Duration, at time.Time) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(result).Inc()
	m.passSeconds.Observe(took.Seconds())
	if result != ResultError {
		m.lastSuccess.Set(float64(at.Unix()))
	}
}

// ObserveEvents counts emitted change events.
func (m *Metrics) ObserveEvents(events []model.ChangeEvent) {
	if m == nil {
		return
	}
	for _, ev := range events {
		m.changes.WithLabelValues(string(ev.Kind)).Inc()
	}
}

// SetBookings refreshes the guest/blocked gauges from the current list.
func (m *Metrics) SetBookings(bookings []model.Booking, today time.Time) {
	if m == nil {
		return
	}
	var guest, blocked int
	for _, b := range bookings {
		if b.LastNight.Before(today) {
			continue
		}
		if b.IsBlockedOff {
			blocked++
		} else {
			guest++
		}
	}
	m.bookings.WithLabelValues("guest").Set(float64(guest))
	m.bookings.WithLabelValues("blocked").Set(float64(blocked))
}
