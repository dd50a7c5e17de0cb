// Package metrics counts run outcomes in Prometheus form.
//
// A Recorder is an engine.Observer; the CLI registers it with the runner and
// writes the collected samples to a node_exporter textfile after the run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/failure"
)

const namespace = "todocheck"

// Recorder collects per-case metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	cases    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Histogram
	running  prometheus.Gauge

	suite string
}

var _ engine.Observer = (*Recorder)(nil)

// New creates a Recorder labelling samples with suite.
func New(suite string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		suite:    suite,
		cases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_total",
			Help:      "Finished test cases by status.",
		}, []string{"suite", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "case_failures_total",
			Help:      "Failed test cases by failure code.",
		}, []string{"suite", "code"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "case_duration_seconds",
			Help:      "Wall time of executed test cases, hooks included.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cases_running",
			Help:      "Test cases currently executing.",
		}),
	}
	r.registry.MustRegister(r.cases, r.failures, r.duration, r.running)
	return r
}

// Registry exposes the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// CaseStarted implements engine.Observer.
func (r *Recorder) CaseStarted(engine.CaseInfo) {
	r.running.Inc()
}

// CaseFinished implements engine.Observer. Skipped cases never started.
func (r *Recorder) CaseFinished(res engine.CaseResult) {
	r.cases.WithLabelValues(r.suite, string(res.Status)).Inc()
	if res.Status == engine.StatusSkipped {
		return
	}
	r.running.Dec()
	r.duration.Observe(res.Elapsed.Seconds())
	if res.Status == engine.StatusFailed {
		code := "ERROR"
		if err := res.Err; err != nil {
			if c := failure.CodeOf(err); c != "" {
				code = string(c)
			}
		} else if len(res.HookErrors) > 0 {
			code = string(failure.CodeHook)
		}
		r.failures.WithLabelValues(r.suite, code).Inc()
	}
}

// WriteTextfile writes every sample to path in the text exposition format,
// atomically, for the node_exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
