package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	deploymentsSubmitted *prometheus.CounterVec
	deploymentsCompleted *prometheus.CounterVec
	deploymentDuration   *prometheus.HistogramVec
	stepsExecuted        *prometheus.CounterVec
	stepDuration         *prometheus.HistogramVec
	layoutsComputed      *prometheus.CounterVec
	layoutNodes          prometheus.Histogram
	workerPoolIdle       prometheus.Gauge
	workerPoolBusy       prometheus.Gauge
	workerPoolStopped    prometheus.Gauge
	activeDeployments    prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector registered on reg.
// A nil reg uses the default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		deploymentsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powers_deployments_submitted_total",
				Help: "Total number of deployment requests",
			},
			[]string{"status"},
		),
		deploymentsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powers_deployments_completed_total",
				Help: "Total number of finished deployments",
			},
			[]string{"status"},
		),
		deploymentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "powers_deployment_duration_seconds",
				Help:    "Deployment duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		stepsExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powers_deployment_steps_total",
				Help: "Total number of deployment steps by kind and outcome",
			},
			[]string{"kind", "status"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "powers_deployment_step_duration_seconds",
				Help:    "Duration of a deployment step, including confirmations",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"kind"},
		),
		layoutsComputed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "powers_layouts_computed_total",
				Help: "Total number of mandate graph layouts",
			},
			[]string{"source"},
		),
		layoutNodes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "powers_layout_nodes",
				Help:    "Number of mandates per laid out graph",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 250},
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "powers_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "powers_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "powers_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
		activeDeployments: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "powers_active_deployments",
				Help: "Number of deployments submitted but not finished",
			},
		),
	}
}

// RecordDeploymentSubmitted records a deployment request. Accepted requests
// count as active until they complete.
func (c *Collector) RecordDeploymentSubmitted(status string) {
	c.deploymentsSubmitted.WithLabelValues(status).Inc()
	if status == "pending" {
		c.activeDeployments.Inc()
	}
}

// RecordDeploymentCompleted records a finished deployment
func (c *Collector) RecordDeploymentCompleted(status string, duration time.Duration) {
	c.deploymentsCompleted.WithLabelValues(status).Inc()
	c.deploymentDuration.WithLabelValues(status).Observe(duration.Seconds())
	c.activeDeployments.Dec()
}

// RecordStep records one transaction step
func (c *Collector) RecordStep(kind, status string, duration time.Duration) {
	c.stepsExecuted.WithLabelValues(kind, status).Inc()
	c.stepDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordLayoutComputed records a graph layout
func (c *Collector) RecordLayoutComputed(cached bool, nodes int) {
	source := "computed"
	if cached {
		source = "cache"
	}
	c.layoutsComputed.WithLabelValues(source).Inc()
	c.layoutNodes.Observe(float64(nodes))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
