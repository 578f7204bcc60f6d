// Package telemetry exposes training and resource gauges over Prometheus.
package telemetry

import (
	"strconv"

	"intenttune/domain/resources"
	"intenttune/domain/training"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every collector of a run. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ramPercent   prometheus.Gauge
	ramUsed      prometheus.Gauge
	ramAvailable prometheus.Gauge
	gpuUsed      *prometheus.GaugeVec
	gpuTotal     *prometheus.GaugeVec
	trainLoss    prometheus.Gauge
	learningRate prometheus.Gauge
	trainSteps   prometheus.Counter
	epoch        prometheus.Gauge
	evalMetrics  *prometheus.GaugeVec
	sampleErrors prometheus.Counter
}

// NewMetrics creates collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ramPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intenttune_ram_usage_percent",
			Help: "System memory in use, percent of total",
		}),
		ramUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intenttune_ram_used_bytes",
			Help: "System memory in use",
		}),
		ramAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intenttune_ram_available_bytes",
			Help: "System memory available to new work",
		}),
		gpuUsed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "intenttune_gpu_memory_used_megabytes",
			Help: "GPU memory in use",
		}, []string{"gpu", "name"}),
		gpuTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "intenttune_gpu_memory_total_megabytes",
			Help: "GPU memory capacity",
		}, []string{"gpu", "name"}),
		trainLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intenttune_train_loss",
			Help: "Mean training loss over the last logging window",
		}),
		learningRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intenttune_learning_rate",
			Help: "Current optimizer learning rate",
		}),
		trainSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intenttune_train_steps_total",
			Help: "Optimizer steps taken",
		}),
		epoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intenttune_epoch",
			Help: "Fractional training epoch",
		}),
		evalMetrics: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "intenttune_eval_metric",
			Help: "Latest evaluation metrics by split and name",
		}, []string{"split", "metric"}),
		sampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intenttune_monitor_sample_errors_total",
			Help: "Resource samples that failed",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ramPercent,
		m.ramUsed,
		m.ramAvailable,
		m.gpuUsed,
		m.gpuTotal,
		m.trainLoss,
		m.learningRate,
		m.trainSteps,
		m.epoch,
		m.evalMetrics,
		m.sampleErrors,
	)
	return m
}

// ObserveSnapshot records a resource sample
func (m *Metrics) ObserveSnapshot(s resources.Snapshot) {
	if m == nil {
		return
	}
	if s.HasMemory() {
		m.ramPercent.Set(s.Memory.Percent)
		m.ramUsed.Set(float64(s.Memory.UsedBytes))
		m.ramAvailable.Set(float64(s.Memory.AvailableBytes))
	}
	for _, g := range s.GPUs {
		id := strconv.Itoa(g.ID)
		m.gpuUsed.WithLabelValues(id, g.Name).Set(g.MemoryUsedMB)
		m.gpuTotal.WithLabelValues(id, g.Name).Set(g.MemoryTotalMB)
	}
}

// SampleFailed counts a failed resource sample
func (m *Metrics) SampleFailed() {
	if m == nil {
		return
	}
	m.sampleErrors.Inc()
}

// ObserveStep records a logged training window
func (m *Metrics) ObserveStep(loss, lr, epoch float64) {
	if m == nil {
		return
	}
	m.trainLoss.Set(loss)
	m.learningRate.Set(lr)
	m.epoch.Set(epoch)
}

// StepTaken counts one optimizer step
func (m *Metrics) StepTaken() {
	if m == nil {
		return
	}
	m.trainSteps.Inc()
}

// ObserveEval records evaluation metrics under their prefix
func (m *Metrics) ObserveEval(r training.EvalResult) {
	if m == nil {
		return
	}
	split := r.Prefix
	if split == "" {
		split = "eval"
	}
	m.evalMetrics.WithLabelValues(split, training.MetricLoss).Set(r.Loss)
	m.evalMetrics.WithLabelValues(split, training.MetricAccuracy).Set(r.Accuracy)
	m.evalMetrics.WithLabelValues(split, training.MetricF1).Set(r.F1)
}
