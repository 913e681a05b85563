// Package metrics exposes run and instance metrics in Prometheus format.
// Every Collector owns its registry, so parallel runs in tests never share
// counters.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/specialistvlad/pipegrid/internal/node"
)

// Collector implements events.Observer using Prometheus.
type Collector struct {
	registry *prometheus.Registry

	runsStarted      *prometheus.CounterVec
	runsFinished     *prometheus.CounterVec
	instancesTotal   *prometheus.CounterVec
	instanceDuration *prometheus.HistogramVec
	instancesRunning prometheus.Gauge
	instancesQueued  prometheus.Gauge
}

// NewCollector creates a collector with its own registry, including the Go
// runtime and process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		runsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegrid_runs_started_total",
				Help: "Total number of pipeline runs started",
			},
			[]string{"pipeline"},
		),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegrid_runs_finished_total",
				Help: "Total number of pipeline runs finished, by verdict",
			},
			[]string{"pipeline", "verdict"},
		),
		instancesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipegrid_instances_total",
				Help: "Total number of job instances that reached a terminal status",
			},
			[]string{"job", "status"},
		),
		instanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipegrid_instance_duration_seconds",
				Help:    "Wall time of job instances that ran",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"job"},
		),
		instancesRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipegrid_instances_running",
				Help: "Number of job instances currently running",
			},
		),
		instancesQueued: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "pipegrid_instances_ready",
				Help: "Number of job instances waiting for a worker",
			},
		),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Observe implements events.Observer.
func (c *Collector) Observe(_ context.Context, ev events.Event) {
	switch ev.Kind {
	case events.KindRunStarted:
		c.runsStarted.WithLabelValues(ev.Pipeline).Inc()
	case events.KindRunFinished:
		c.runsFinished.WithLabelValues(ev.Pipeline, ev.Verdict).Inc()
	case events.KindTransition:
		c.observeTransition(ev)
	}
}

func (c *Collector) observeTransition(ev events.Event) {
	switch ev.From {
	case node.StatusReady:
		c.instancesQueued.Dec()
	case node.StatusRunning:
		c.instancesRunning.Dec()
	}
	switch ev.To {
	case node.StatusReady:
		c.instancesQueued.Inc()
	case node.StatusRunning:
		c.instancesRunning.Inc()
	}

	if !ev.To.IsTerminal() {
		return
	}
	c.instancesTotal.WithLabelValues(ev.Job, ev.To.String()).Inc()
	if ev.From == node.StatusRunning {
		c.instanceDuration.WithLabelValues(ev.Job).Observe(ev.Duration.Seconds())
	}
}

var _ events.Observer = (*Collector)(nil)
