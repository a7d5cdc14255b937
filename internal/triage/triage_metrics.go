package triage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for alert intake and triage.
type Metrics struct {
	IngestTotal        *prometheus.CounterVec
	UpdatesTotal       *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	ResponseTime       prometheus.Histogram
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_alerts_ingested_total",
			Help: "Alert submissions by result.",
		}, []string{"result"}),
		UpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_triage_updates_total",
			Help: "Triage field updates by field and outcome.",
		}, []string{"field", "outcome"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_status_transitions_total",
			Help: "Status transitions by previous and new status.",
		}, []string{"from", "to"}),
		ResponseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifelink_response_time_seconds",
			Help:    "Seconds from ingestion to first solve.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 12), // 30s .. ~17h
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifelink_notifications_total",
			Help: "New-alert notifications by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.IngestTotal,
		m.UpdatesTotal,
		m.TransitionsTotal,
		m.ResponseTime,
		m.NotificationsTotal,
	)

	return m
}

// the helpers below are nil-safe so the service runs without metrics in tests

func (m *Metrics) ingest(result string) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) update(field, outcome string) {
	if m == nil {
		return
	}
	m.UpdatesTotal.WithLabelValues(field, outcome).Inc()
}

func (m *Metrics) updateErr(field string, err error) {
	outcome := "error"
	if errors.Is(err, ErrNotFound) {
		outcome = "not_found"
	}
	m.update(field, outcome)
}

func (m *Metrics) transition(ch *StatusChange) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(ch.Previous), string(ch.Current)).Inc()
	if ch.SolvedNow && ch.SolvedAt != nil && !ch.CreatedAt.IsZero() {
		m.ResponseTime.Observe(ch.SolvedAt.Sub(ch.CreatedAt).Seconds())
	}
}

func (m *Metrics) notify(result string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(result).Inc()
}
