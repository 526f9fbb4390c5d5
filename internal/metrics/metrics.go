// Package metrics exposes Prometheus instrumentation for the dispatcher,
// ported from oriys/nova's internal/metrics/prometheus.go: a struct of
// pre-registered collectors, constructed once per Registerer and updated
// from the hot path with no locking beyond what the prometheus client
// itself does internally.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// defaultBuckets mirrors nova's histogram buckets, rescaled from FaaS
// invocation latency (milliseconds) to in-process task latency (seconds);
// tasks in this dispatcher are expected to be much shorter-lived than a
// function invocation crossing a VM boundary.
var defaultBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5}

// Collector holds every metric the scheduler reports. A nil *Collector is
// valid and every method on it is a no-op, so callers that don't care
// about metrics don't need to special-case anything.
type Collector struct {
	activeTasks    prometheus.Gauge
	tasksLaunched  *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	taskFailures   *prometheus.CounterVec
	fetchConflicts prometheus.Counter
	dispatchTotal  prometheus.Counter
	dispatchPanics prometheus.Counter
}

// New registers the dispatcher's collectors under namespace into reg. Pass
// a fresh prometheus.NewRegistry() in tests to avoid cross-test collisions
// with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if namespace == "" {
		namespace = "dispatch"
	}
	c := &Collector{
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Number of tasks currently running on the worker pool.",
		}),
		tasksLaunched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_launched_total",
			Help:      "Total number of tasks launched, by task name.",
		}, []string{"task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task run duration in seconds, by task name.",
			Buckets:   defaultBuckets,
		}, []string{"task"}),
		taskFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_failures_total",
			Help:      "Total number of task failures, by task name and kind (error|panic).",
		}, []string{"task", "kind"}),
		fetchConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_conflicts_total",
			Help:      "Borrow conflicts observed at fetch time; always a scheduling bug if nonzero.",
		}),
		dispatchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of Dispatch/DispatchSeq calls completed.",
		}),
		dispatchPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_panics_total",
			Help:      "Total number of Dispatch calls that observed at least one task panic.",
		}),
	}
	reg.MustRegister(
		c.activeTasks,
		c.tasksLaunched,
		c.taskDuration,
		c.taskFailures,
		c.fetchConflicts,
		c.dispatchTotal,
		c.dispatchPanics,
	)
	return c
}

func (c *Collector) TaskStarted(name string) {
	if c == nil {
		return
	}
	c.activeTasks.Inc()
	c.tasksLaunched.WithLabelValues(name).Inc()
}

func (c *Collector) TaskFinished(name string, d time.Duration) {
	if c == nil {
		return
	}
	c.activeTasks.Dec()
	c.taskDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (c *Collector) TaskError(name string) {
	if c == nil {
		return
	}
	c.taskFailures.WithLabelValues(name, "error").Inc()
}

func (c *Collector) TaskPanicked(name string) {
	if c == nil {
		return
	}
	c.taskFailures.WithLabelValues(name, "panic").Inc()
}

func (c *Collector) FetchConflict() {
	if c == nil {
		return
	}
	c.fetchConflicts.Inc()
}

func (c *Collector) DispatchCompleted(panicked bool) {
	if c == nil {
		return
	}
	c.dispatchTotal.Inc()
	if panicked {
		c.dispatchPanics.Inc()
	}
}
