// Package metrics exposes run counters and latencies to Prometheus through
// engine lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run outcome label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics owns a private registry so several engines (or tests) never collide
// on the global one.
type Metrics struct {
	registry      *prometheus.Registry
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	tweaksApplied prometheus.Counter
}

// New registers the langrun collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "langrun_runs_total",
				Help: "Total number of flow runs by outcome",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "langrun_run_duration_seconds",
				Help:    "Duration of flow runs, executor time included",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"flow"},
		),
		tweaksApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "langrun_tweaks_applied_total",
				Help: "Total number of template fields changed by tweaks",
			},
		),
	}
	m.registry.MustRegister(
		m.runs,
		m.duration,
		m.tweaksApplied,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTweakApplied: func(context.Context, *domain.TweakEvent) {
			m.tweaksApplied.Inc()
		},
		OnRunFinish: func(_ context.Context, e *domain.RunEvent) {
			status := StatusSuccess
			if e.Err != nil {
				status = StatusError
			}
			m.runs.WithLabelValues(status).Inc()
			m.duration.WithLabelValues(e.FlowName).Observe(e.Duration.Seconds())
		},
	}
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
