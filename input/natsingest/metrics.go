package natsingest

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seanttaylor/parcely-sub000/metric"
)

// Metrics holds Prometheus metrics for the NATS ingest input.
type Metrics struct {
	samplesReceived  prometheus.Counter
	malformedDropped prometheus.Counter
	enqueueRejected  prometheus.Counter
}

// newMetrics creates and registers ingest metrics. Returns nil when the
// registry is nil; all Metrics methods tolerate a nil receiver.
func newMetrics(registry *metric.MetricsRegistry) (*Metrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &Metrics{
		samplesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "ingest",
			Name:      "samples_received_total",
			Help:      "Raw telemetry payloads received from the wire",
		}),
		malformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "ingest",
			Name:      "malformed_dropped_total",
			Help:      "Payloads dropped because they failed to decode",
		}),
		enqueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parcely",
			Subsystem: "ingest",
			Name:      "enqueue_rejected_total",
			Help:      "Decoded samples rejected by a full ingestion queue",
		}),
	}

	if err := registry.RegisterCounter(componentName, "samples_received", m.samplesReceived); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "malformed_dropped", m.malformedDropped); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(componentName, "enqueue_rejected", m.enqueueRejected); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) recordReceived() {
	if m != nil {
		m.samplesReceived.Inc()
	}
}

func (m *Metrics) recordMalformed() {
	if m != nil {
		m.malformedDropped.Inc()
	}
}

func (m *Metrics) recordRejected() {
	if m != nil {
		m.enqueueRejected.Inc()
	}
}
