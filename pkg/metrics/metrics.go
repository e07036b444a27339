// Package metrics provides Prometheus-based push-side counters and gauges
// for the core's request and directive throughput. Grounded on the
// teacher's pkg/agent/middleware/metrics.PrometheusRecorder: the same
// promauto-vectors-by-label shape, re-labeled for Accord's request/service
// domain instead of per-model LLM call accounting.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records core throughput as Prometheus metrics in the default
// registry. There is no aggregation or query surface here, and this module
// serves no /metrics HTTP endpoint.
type Recorder struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeWorkers     *prometheus.GaugeVec
	dispatchedPerTick prometheus.Histogram
	directiveTotal    *prometheus.CounterVec
}

// NewRecorder constructs a Recorder and registers its collectors against
// the default Prometheus registry.
func NewRecorder() *Recorder {
	return &Recorder{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accord_requests_total",
				Help: "Total number of requests processed by service and outcome",
			},
			[]string{"service", "status"},
		),
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accord_request_duration_seconds",
				Help:    "Duration of a single Worker.ProcessRequest call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		activeWorkers: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "accord_active_workers",
				Help: "Number of worker slots currently busy",
			},
			[]string{"service"},
		),
		dispatchedPerTick: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "accord_dispatched_per_tick",
				Help:    "Number of requests assigned in a single scheduler tick",
				Buckets: []float64{0, 1, 2, 4, 8, 16, 32},
			},
		),
		directiveTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accord_directive_transitions_total",
				Help: "Total number of directive phase transitions by target phase",
			},
			[]string{"to"},
		),
	}
}

// ObserveRequest records the outcome and duration of a processed request.
func (r *Recorder) ObserveRequest(service string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	r.requestsTotal.WithLabelValues(service, status).Inc()
	r.requestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// SetActiveWorkers records the current busy-worker count for a service.
func (r *Recorder) SetActiveWorkers(service string, count int) {
	r.activeWorkers.WithLabelValues(service).Set(float64(count))
}

// ObserveDispatchedPerTick records how many requests a scheduler tick assigned.
func (r *Recorder) ObserveDispatchedPerTick(n int) {
	r.dispatchedPerTick.Observe(float64(n))
}

// IncDirectiveTransition records a directive phase transition to the given
// target phase.
func (r *Recorder) IncDirectiveTransition(to string) {
	r.directiveTotal.WithLabelValues(to).Inc()
}
