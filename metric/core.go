package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all platform-level metrics (not component-specific)
type Metrics struct {
	// Service metrics
	ServiceStatus      *prometheus.GaugeVec
	SamplesEnqueued    *prometheus.CounterVec
	SamplesProcessed   *prometheus.CounterVec
	EventsPublished    *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	HealthCheckStatus  *prometheus.GaugeVec

	// Pipeline metrics
	QueueDepth           prometheus.Gauge
	SubscribersConnected *prometheus.GaugeVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all platform metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "parcely",
				Subsystem: "service",
				Name:      "status",
				Help:      "Service status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"service"},
		),

		SamplesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parcely",
				Subsystem: "telemetry",
				Name:      "samples_enqueued_total",
				Help:      "Total number of telemetry samples accepted into the ingestion queue",
			},
			[]string{"service"},
		),

		SamplesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parcely",
				Subsystem: "telemetry",
				Name:      "samples_processed_total",
				Help:      "Total number of telemetry samples processed",
			},
			[]string{"service", "status"},
		),

		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parcely",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Total number of events published on the bus",
			},
			[]string{"service", "topic"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "parcely",
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Sample processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parcely",
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors",
			},
			[]string{"service", "type"},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "parcely",
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=healthy)",
			},
			[]string{"service"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "parcely",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Current number of pending telemetry samples in the ingestion queue",
			},
		),

		SubscribersConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "parcely",
				Subsystem: "realtime",
				Name:      "subscribers_connected",
				Help:      "Number of currently connected realtime subscribers",
			},
			[]string{"transport"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "parcely",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "parcely",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// RecordServiceStatus updates service status metric
func (c *Metrics) RecordServiceStatus(service string, status int) {
	c.ServiceStatus.WithLabelValues(service).Set(float64(status))
}

// RecordSampleEnqueued increments the enqueued sample counter
func (c *Metrics) RecordSampleEnqueued(service string) {
	c.SamplesEnqueued.WithLabelValues(service).Inc()
}

// RecordSampleProcessed increments the processed sample counter.
// Status is one of "accepted", "noop", "dropped".
func (c *Metrics) RecordSampleProcessed(service, status string) {
	c.SamplesProcessed.WithLabelValues(service, status).Inc()
}

// RecordEventPublished increments the published event counter
func (c *Metrics) RecordEventPublished(service, topic string) {
	c.EventsPublished.WithLabelValues(service, topic).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(service, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordError increments error counter
func (c *Metrics) RecordError(service, errorType string) {
	c.ErrorsTotal.WithLabelValues(service, errorType).Inc()
}

// RecordHealthStatus updates health check status
func (c *Metrics) RecordHealthStatus(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	c.HealthCheckStatus.WithLabelValues(service).Set(value)
}

// RecordQueueDepth updates the ingestion queue depth gauge
func (c *Metrics) RecordQueueDepth(depth int) {
	c.QueueDepth.Set(float64(depth))
}

// RecordSubscribers updates the connected subscriber gauge for a transport
func (c *Metrics) RecordSubscribers(transport string, count int) {
	c.SubscribersConnected.WithLabelValues(transport).Set(float64(count))
}

// RecordNATSStatus updates NATS connection status
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
}

// RecordNATSReconnect increments reconnection counter
func (c *Metrics) RecordNATSReconnect() {
	c.NATSReconnects.Inc()
}
