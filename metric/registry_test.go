package metric

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func gatherNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(metricFamilies))
	for _, mf := range metricFamilies {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	err := registry.RegisterCounter("test-service", "test_counter", counter)
	require.NoError(t, err)

	counter.Inc()

	names := gatherNames(t, registry)
	assert.True(t, names["test_counter"], "Counter should be registered in Prometheus registry")
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dup_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("svc", "dup_counter", counter))

	err := registry.RegisterCounter("svc", "dup_counter", counter)
	assert.Error(t, err, "duplicate registration must be rejected")
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})

	require.NoError(t, registry.RegisterGauge("svc", "test_gauge", gauge))
	assert.True(t, registry.Unregister("svc", "test_gauge"))
	assert.False(t, registry.Unregister("svc", "test_gauge"), "second unregister returns false")

	// Re-registration after unregister should succeed
	require.NoError(t, registry.RegisterGauge("svc", "test_gauge", gauge))
}

func TestMetricsRegistry_ConcurrentRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", n),
				Help: "A test counter",
			})
			assert.NoError(t, registry.RegisterCounter("svc", fmt.Sprintf("counter_%d", n), counter))
		}(i)
	}
	wg.Wait()

	names := gatherNames(t, registry)
	for i := 0; i < 10; i++ {
		assert.True(t, names[fmt.Sprintf("concurrent_counter_%d", i)])
	}
}

func TestCoreMetrics_Recorders(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	// Recorders must not panic and must surface through the registry
	core.RecordServiceStatus("processor", 2)
	core.RecordSampleEnqueued("queue")
	core.RecordSampleProcessed("processor", "accepted")
	core.RecordSampleProcessed("processor", "dropped")
	core.RecordEventPublished("processor", "telemetry.accepted")
	core.RecordQueueDepth(5)
	core.RecordSubscribers("sse", 3)
	core.RecordHealthStatus("processor", true)
	core.RecordNATSStatus(false)
	core.RecordNATSReconnect()

	names := gatherNames(t, registry)
	assert.True(t, names["parcely_queue_depth"])
	assert.True(t, names["parcely_telemetry_samples_processed_total"])
	assert.True(t, names["parcely_realtime_subscribers_connected"])
}
