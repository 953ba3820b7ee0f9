package websocket

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seanttaylor/parcely-sub000/metric"
)

// Metrics holds Prometheus metrics for the WebSocket output.
type Metrics struct {
	messagesSent   prometheus.Counter
	bytesSent      prometheus.Counter
	clientsDropped prometheus.Counter
	connected      prometheus.Gauge
}

// newMetrics creates and registers WebSocket metrics. Returns nil when the
// registry is nil; all Metrics methods tolerate a nil receiver.
func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "websocket",
			Name:      "messages_sent_total",
			Help:      "Messages written to WebSocket clients",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "websocket",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to WebSocket clients",
		}),
		clientsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "websocket",
			Name:      "clients_dropped_total",
			Help:      "Clients removed after a failed or timed-out write",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parcely",
			Subsystem: "websocket",
			Name:      "clients_connected",
			Help:      "Currently connected WebSocket clients",
		}),
	}

	if err := registry.RegisterCounter(componentName, "messages_sent", m.messagesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "bytes_sent", m.bytesSent); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "clients_dropped", m.clientsDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(componentName, "clients_connected", m.connected); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) recordSent(bytes int) {
	if m != nil {
		m.messagesSent.Inc()
		m.bytesSent.Add(float64(bytes))
	}
}

func (m *Metrics) recordDropped() {
	if m != nil {
		m.clientsDropped.Inc()
	}
}

func (m *Metrics) setConnected(n int) {
	if m != nil {
		m.connected.Set(float64(n))
	}
}
