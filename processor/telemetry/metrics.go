package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/seanttaylor/parcely-sub000/metric"
)

// Metrics holds Prometheus metrics for the telemetry processor.
type Metrics struct {
	samplesAccepted prometheus.Counter
	samplesNoop     prometheus.Counter
	samplesDropped  prometheus.Counter
	applyErrors     prometheus.Counter
	batchSize       prometheus.Histogram
	applyDuration   prometheus.Histogram
}

// newMetrics creates and registers processor metrics. Returns nil when the
// registry is nil; all Metrics methods tolerate a nil receiver.
func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		samplesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "processor",
			Name:      "samples_accepted_total",
			Help:      "Telemetry samples applied to a crate and published",
		}),
		samplesNoop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "processor",
			Name:      "samples_noop_total",
			Help:      "Telemetry samples that were silent no-ops (completed or inactive shipment)",
		}),
		samplesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "processor",
			Name:      "samples_dropped_total",
			Help:      "Telemetry samples dropped because the crate could not be resolved",
		}),
		applyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "processor",
			Name:      "apply_errors_total",
			Help:      "Infrastructure errors while applying telemetry",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parcely",
			Subsystem: "processor",
			Name:      "batch_size",
			Help:      "Number of samples per drained batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		applyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parcely",
			Subsystem: "processor",
			Name:      "apply_duration_seconds",
			Help:      "Time to apply one telemetry sample",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	counters := []struct {
		key string
		c   prometheus.Counter
	}{
		{"samples_accepted", m.samplesAccepted},
		{"samples_noop", m.samplesNoop},
		{"samples_dropped", m.samplesDropped},
		{"apply_errors", m.applyErrors},
	}
	for _, reg := range counters {
		if err := registry.RegisterCounter(componentName, reg.key, reg.c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterHistogram(componentName, "batch_size", m.batchSize); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(componentName, "apply_duration", m.applyDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) recordAccepted() {
	if m != nil {
		m.samplesAccepted.Inc()
	}
}

func (m *Metrics) recordNoop() {
	if m != nil {
		m.samplesNoop.Inc()
	}
}

func (m *Metrics) recordDropped() {
	if m != nil {
		m.samplesDropped.Inc()
	}
}

func (m *Metrics) recordError() {
	if m != nil {
		m.applyErrors.Inc()
	}
}

func (m *Metrics) recordBatch(size int) {
	if m != nil {
		m.batchSize.Observe(float64(size))
	}
}

func (m *Metrics) recordApplyDuration(d time.Duration) {
	if m != nil {
		m.applyDuration.Observe(d.Seconds())
	}
}
