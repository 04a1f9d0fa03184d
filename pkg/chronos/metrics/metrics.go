// Package metrics exposes the Scheduler's execution counters and durations
// as Prometheus collectors, fed from the statistics-update step of the
// execution pipeline rather than scraped from the Store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jholhewres/chronos/pkg/chronos"
)

// Recorder is the narrow interface the Scheduler depends on. A nil
// *Recorder (via NoopRecorder) is valid and simply discards every call,
// so metrics wiring is opt-in.
type Recorder interface {
	SetActiveTasks(n int)
	ObserveExecution(status chronos.ExecutionStatus, duration float64)
}

// PromRecorder registers and updates the three collectors named in the
// domain-stack wiring: an active-task gauge and a status-labeled execution
// counter/histogram pair.
type PromRecorder struct {
	tasksActive       prometheus.Gauge
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
}

// NewPromRecorder builds and registers the collectors against reg. Passing
// prometheus.NewRegistry() isolates them for tests; passing nil registers
// against the default global registry.
func NewPromRecorder(reg prometheus.Registerer) *PromRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &PromRecorder{
		tasksActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chronos_tasks_active",
			Help: "Number of tasks currently in the active status.",
		}),
		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chronos_executions_total",
			Help: "Total task executions, labeled by final status.",
		}, []string{"status"}),
		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronos_execution_duration_seconds",
			Help:    "Execution wall-clock duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(r.tasksActive, r.executionsTotal, r.executionDuration)
	return r
}

func (r *PromRecorder) SetActiveTasks(n int) {
	r.tasksActive.Set(float64(n))
}

func (r *PromRecorder) ObserveExecution(status chronos.ExecutionStatus, durationSeconds float64) {
	r.executionsTotal.WithLabelValues(string(status)).Inc()
	if status != chronos.ExecutionSkipped {
		r.executionDuration.Observe(durationSeconds)
	}
}

// NoopRecorder discards every call; it is the default when a Scheduler is
// built without metrics wiring.
type NoopRecorder struct{}

func (NoopRecorder) SetActiveTasks(int)                                    {}
func (NoopRecorder) ObserveExecution(chronos.ExecutionStatus, float64) {}
