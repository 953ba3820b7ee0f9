package sse

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seanttaylor/parcely-sub000/metric"
)

// Metrics holds Prometheus metrics for the SSE output.
type Metrics struct {
	eventsBroadcast    prometheus.Counter
	subscribersDropped prometheus.Counter
	connected          prometheus.Gauge
}

// newMetrics creates and registers SSE metrics. Returns nil when the
// registry is nil; all Metrics methods tolerate a nil receiver.
func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		eventsBroadcast: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "sse",
			Name:      "events_broadcast_total",
			Help:      "Events written to SSE subscribers",
		}),
		subscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "sse",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers removed after a failed or timed-out write",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parcely",
			Subsystem: "sse",
			Name:      "subscribers_connected",
			Help:      "Currently connected SSE subscribers",
		}),
	}

	if err := registry.RegisterCounter(componentName, "events_broadcast", m.eventsBroadcast); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "subscribers_dropped", m.subscribersDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "subscribers_connected", m.connected); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) recordBroadcast() {
	if m != nil {
		m.eventsBroadcast.Inc()
	}
}

func (m *Metrics) recordDropped() {
	if m != nil {
		m.subscribersDropped.Inc()
	}
}

func (m *Metrics) setConnected(n int) {
	if m != nil {
		m.connected.Set(float64(n))
	}
}
