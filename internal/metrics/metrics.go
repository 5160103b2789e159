package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saturnino-fabrica-de-software/proctor/internal/monitor"
)

// Metrics holds all application metrics
type Metrics struct {
	// Tick counters
	TicksEvaluated atomic.Uint64
	TicksRejected  atomic.Uint64

	// Side effect counters
	EvidenceErrors atomic.Uint64
	AlarmsPlayed   atomic.Uint64
	AlarmsFailed   atomic.Uint64
	AlarmsDropped  atomic.Uint64
	PublishErrors  atomic.Uint64

	// Latency tracking
	TickLatencyMs atomic.Uint64 // last tick evaluation in ms

	findings         *prometheus.CounterVec
	detectorFailures *prometheus.CounterVec
	tickDuration     prometheus.Histogram

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_findings_total",
			Help: "Findings raised, by kind",
		}, []string{"kind"}),
		detectorFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proctor_detector_failures_total",
			Help: "Detector calls that gave no signal, by detector",
		}, []string{"detector"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proctor_tick_duration_seconds",
			Help:    "Tick evaluation time including detector calls",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(m.findings, m.detectorFailures, m.tickDuration)

	gauges := []struct {
		name, help string
		value      *atomic.Uint64
	}{
		{"proctor_ticks_evaluated_total", "Total ticks evaluated", &m.TicksEvaluated},
		{"proctor_ticks_rejected_total", "Ticks rejected (closed session, out of order)", &m.TicksRejected},
		{"proctor_evidence_errors_total", "Evidence writes that failed", &m.EvidenceErrors},
		{"proctor_alarms_played_total", "Alarm plays completed", &m.AlarmsPlayed},
		{"proctor_alarms_failed_total", "Alarm plays that failed", &m.AlarmsFailed},
		{"proctor_alarms_dropped_total", "Alarm requests dropped on a full queue", &m.AlarmsDropped},
		{"proctor_publish_errors_total", "Finding publications that failed", &m.PublishErrors},
		{"proctor_tick_latency_ms", "Last tick evaluation latency in milliseconds", &m.TickLatencyMs},
	}

	for _, g := range gauges {
		v := g.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(v.Load()) },
		))
	}
}

// TrackActiveSessions exposes the number of live sessions
func (m *Metrics) TrackActiveSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "proctor_active_sessions",
			Help: "Sessions currently monitored",
		},
		func() float64 { return float64(count()) },
	))
}

// ObserveReport records one evaluated tick
func (m *Metrics) ObserveReport(r monitor.Report, took time.Duration) {
	m.TicksEvaluated.Add(1)
	m.TickLatencyMs.Store(uint64(took.Milliseconds()))
	m.tickDuration.Observe(took.Seconds())

	for _, f := range r.Findings {
		m.findings.WithLabelValues(f.Kind.EventName()).Inc()
	}
	for _, f := range r.Failures {
		m.detectorFailures.WithLabelValues(f.Detector).Inc()
	}
}

// Registry exposes the collectors, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
