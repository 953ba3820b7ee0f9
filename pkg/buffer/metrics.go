package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seanttaylor/parcely-sub000/metric"
)

// bufferMetrics exposes buffer counters and gauges through Prometheus.
type bufferMetrics struct {
	writes    prometheus.Counter
	reads     prometheus.Counter
	overflows prometheus.Counter
	drops     prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the registry.
// The name parameter becomes the component label so multiple buffers can
// share the registry.
func newBufferMetrics(registry *metric.MetricsRegistry, name string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": name}

	counter := func(metricName, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "parcely",
			Subsystem:   "buffer",
			Name:        metricName,
			ConstLabels: labels,
			Help:        help,
		})
	}
	gauge := func(metricName, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "parcely",
			Subsystem:   "buffer",
			Name:        metricName,
			ConstLabels: labels,
			Help:        help,
		})
	}

	m := &bufferMetrics{
		writes:      counter("writes_total", "Total number of buffer write operations"),
		reads:       counter("reads_total", "Total number of buffer read operations"),
		overflows:   counter("overflows_total", "Total number of buffer overflow events"),
		drops:       counter("drops_total", "Total number of items dropped due to overflow"),
		size:        gauge("size", "Current number of items in buffer"),
		utilization: gauge("utilization", "Buffer utilization as a fraction (0.0 to 1.0)"),
	}

	counters := []struct {
		key string
		c   prometheus.Counter
	}{
		{"buffer_writes", m.writes},
		{"buffer_reads", m.reads},
		{"buffer_overflows", m.overflows},
		{"buffer_drops", m.drops},
	}
	for _, reg := range counters {
		if err := registry.RegisterCounter(name, reg.key, reg.c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(name, "buffer_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(name, "buffer_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int) {
	m.writes.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordRead(size, capacity int) {
	m.reads.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordOverflow() {
	m.overflows.Inc()
}

func (m *bufferMetrics) recordDrop() {
	m.drops.Inc()
}

func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
