package purchase

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks session outcomes. A nil *Metrics is a no-op so callers can
// run without a registry.
type Metrics struct {
	sessionsStarted   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsFailed    *prometheus.CounterVec
	sessionDuration   prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuego_purchase_sessions_started_total",
			Help: "Purchase sessions started.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuego_purchase_sessions_completed_total",
			Help: "Purchase sessions that reached Complete.",
		}),
		sessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuego_purchase_sessions_failed_total",
			Help: "Purchase sessions that ended in Failed, by kind.",
		}, []string{"kind"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fuego_purchase_session_duration_seconds",
			Help:    "Wall time of a purchase session.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.sessionsStarted, m.sessionsCompleted, m.sessionsFailed, m.sessionDuration)
	}
	return m
}

func (m *Metrics) started() {
	if m != nil {
		m.sessionsStarted.Inc()
	}
}

func (m *Metrics) completed(elapsed time.Duration) {
	if m != nil {
		m.sessionsCompleted.Inc()
		m.sessionDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) failedKind(kind FailureKind, elapsed time.Duration) {
	if m != nil {
		m.sessionsFailed.WithLabelValues(string(kind)).Inc()
		m.sessionDuration.Observe(elapsed.Seconds())
	}
}
