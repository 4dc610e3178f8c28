// Package metrics exposes Prometheus instrumentation for the planner
// and executor. The teacher's SchedulerStatus/SystemHealth structs
// (scheduler/server.go) expose similar gauges over a bespoke JSON
// status endpoint with literal "Placeholder" fields; this repo fills
// those placeholders with real prometheus/client_golang collectors
// instead, scraped over /metrics via internal/httpapi.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector this process exposes.
type Registry struct {
	PlanDuration      prometheus.Histogram
	PlanSuccessTotal  prometheus.Counter
	PlanFailureTotal  *prometheus.CounterVec
	SIndexFactor      prometheus.Gauge
	TargetSoCPct      prometheus.Gauge
	CurrentSoCPct     prometheus.Gauge
	ExecutorTickTotal *prometheus.CounterVec
	ControlWriteFailures prometheus.Counter
	DiagnosticsTotal  *prometheus.CounterVec
}

// New creates and registers every collector against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PlanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "kepler",
			Subsystem: "planner",
			Name:      "solve_duration_seconds",
			Help:      "Wall-clock time spent solving a planning run.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		PlanSuccessTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kepler", Subsystem: "planner", Name: "runs_success_total",
			Help: "Number of planning runs that produced a feasible schedule.",
		}),
		PlanFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kepler", Subsystem: "planner", Name: "runs_failure_total",
			Help: "Number of planning runs that failed, labeled by error kind.",
		}, []string{"kind"}),
		SIndexFactor: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kepler", Subsystem: "planner", Name: "s_index_factor",
			Help: "Safety-margin inflation factor applied to the most recent run.",
		}),
		TargetSoCPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kepler", Subsystem: "planner", Name: "target_soc_pct",
			Help: "End-of-horizon target state of charge of the most recent run.",
		}),
		CurrentSoCPct: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kepler", Subsystem: "executor", Name: "current_soc_pct",
			Help: "Most recently observed battery state of charge.",
		}),
		ExecutorTickTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kepler", Subsystem: "executor", Name: "ticks_total",
			Help: "Executor ticks, labeled by the decision source that won priority.",
		}, []string{"source"}),
		ControlWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kepler", Subsystem: "executor", Name: "control_write_failures_total",
			Help: "Control entity writes that failed after all retries.",
		}),
		DiagnosticsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kepler", Subsystem: "diagnostics", Name: "records_total",
			Help: "Diagnostic records published, labeled by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.PlanDuration, m.PlanSuccessTotal, m.PlanFailureTotal,
		m.SIndexFactor, m.TargetSoCPct, m.CurrentSoCPct,
		m.ExecutorTickTotal, m.ControlWriteFailures, m.DiagnosticsTotal,
	)
	return m
}
