// Package metrics exposes housekeeping counters in Prometheus format.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dokzlo13/housekeepd/internal/housekeeping"
)

const namespace = "housekeepd"

// Metrics holds the collectors. It is a housekeeping observer and records
// scene runs.
type Metrics struct {
	registry *prometheus.Registry

	registered *prometheus.CounterVec
	executed   *prometheus.CounterVec
	resets     prometheus.Counter
	pending    prometheus.Gauge
	sceneRuns  *prometheus.CounterVec
	lastRun    prometheus.Gauge
}

var _ housekeeping.Observer = (*Metrics)(nil)

// New creates and registers the collectors on a fresh registry together with
// the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		registered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_registered_total",
			Help:      "Housekeeping tasks registered, by command.",
		}, []string{"cmd"}),
		executed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_executed_total",
			Help:      "Housekeeping tasks executed, by target kind and result.",
		}, []string{"kind", "result"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_resets_total",
			Help:      "Times a corrupted schedule was discarded.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_pending",
			Help:      "Tasks left in the schedule after the last run.",
		}),
		sceneRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_runs_total",
			Help:      "Scene invocations, by scene, trigger and result.",
		}, []string{"scene", "trigger", "result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last due-task pass.",
		}),
	}

	m.registry.MustRegister(
		m.registered, m.executed, m.resets, m.pending, m.sceneRuns, m.lastRun,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) OnRegistered(_ context.Context, _ housekeeping.Target, task housekeeping.Task) {
	m.registered.WithLabelValues(task.Cmd).Inc()
}

func (m *Metrics) OnExecuted(_ context.Context, _ string, target housekeeping.Target, _ housekeeping.Task, err error) {
	kind := "variable"
	if target.IsDevice() {
		kind = "device"
	}
	m.executed.WithLabelValues(kind, result(err)).Inc()
}

func (m *Metrics) OnReset(context.Context, error) {
	m.resets.Inc()
}

// ObserveRun records the outcome of a RunDue pass.
func (m *Metrics) ObserveRun(report housekeeping.RunReport, unixTime int64) {
	m.pending.Set(float64(report.Remaining))
	m.lastRun.Set(float64(unixTime))
}

// SceneRun counts a scene invocation.
func (m *Metrics) SceneRun(_ context.Context, name, trigger string, err error) {
	m.sceneRuns.WithLabelValues(name, trigger, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
