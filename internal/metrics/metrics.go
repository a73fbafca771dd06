package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the attempt-engine collectors. A nil *Metrics is a no-op.
type Metrics struct {
	gatherer        prometheus.Gatherer
	sessionsOpened  *prometheus.CounterVec
	submissions     *prometheus.CounterVec
	persistFailures prometheus.Counter
	liveSessions    prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		sessionsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attempt_sessions_opened_total",
				Help: "Attempt sessions opened, by mode",
			},
			[]string{"mode"},
		),
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attempt_submissions_total",
				Help: "Attempt submissions, by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attempt_snapshot_persist_failures_total",
			Help: "Failed writes of session snapshots",
		}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attempt_live_sessions",
			Help: "Sessions currently held in memory",
		}),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"method", "route", "status"},
		),
	}
	reg.MustRegister(m.sessionsOpened, m.submissions, m.persistFailures, m.liveSessions, m.requestDuration)
	return m
}

func (m *Metrics) SessionOpened(resumed bool) {
	if m == nil {
		return
	}
	mode := "fresh"
	if resumed {
		mode = "resumed"
	}
	m.sessionsOpened.WithLabelValues(mode).Inc()
}

func (m *Metrics) Submitted(auto, ok bool) {
	if m == nil {
		return
	}
	trigger := "manual"
	if auto {
		trigger = "auto"
	}
	outcome := "failed"
	if ok {
		outcome = "ok"
	}
	m.submissions.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) PersistFailed() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// SetLiveSessions reports the size of the session registry.
func (m *Metrics) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.liveSessions.Set(float64(n))
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
