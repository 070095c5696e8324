// Package metrics exposes Prometheus collectors for pipeline runs and
// capability calls. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for capability calls.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeFallback = "fallback"
)

// Metrics groups the collectors of one process.
type Metrics struct {
	calls    *prometheus.CounterVec
	retries  *prometheus.CounterVec
	inflight prometheus.Gauge
	stages   *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil registerer
// leaves them unregistered, which tests use to avoid global state.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwresearch_capability_calls_total",
			Help: "AI capability calls by capability and outcome",
		}, []string{"capability", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwresearch_capability_retries_total",
			Help: "Retried capability calls by capability",
		}, []string{"capability"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kwresearch_capability_inflight",
			Help: "Capability calls holding a limiter permit",
		}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kwresearch_stage_duration_seconds",
			Help:    "Pipeline stage wall time",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kwresearch_runs_total",
			Help: "Pipeline runs by terminal status",
		}, []string{"status"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.calls, m.retries, m.inflight, m.stages, m.runs} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveCall counts one capability call.
func (m *Metrics) ObserveCall(capability, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(capability, outcome).Inc()
}

// ObserveRetry counts one retry of a capability call.
func (m *Metrics) ObserveRetry(capability string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(capability).Inc()
}

// InflightAdd moves the in-flight gauge by delta.
func (m *Metrics) InflightAdd(delta float64) {
	if m == nil {
		return
	}
	m.inflight.Add(delta)
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun counts a finished run ("complete" or "error").
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}
