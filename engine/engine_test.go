package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/config"
	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/health"
	"github.com/seanttaylor/parcely-sub000/repository"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.SSE.Host = "127.0.0.1"
	cfg.SSE.Port = 0
	cfg.WebSocket.Host = "127.0.0.1"
	cfg.WebSocket.Port = 0
	cfg.Metrics.Enabled = false
	cfg.ShutdownTimeout = "2s"
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(ConstructorConfig{
		Config:   testConfig(),
		Accounts: repository.NewStaticAccountResolver(crate.Account{ID: "user-1", Email: "user@example.com"}),
	})
	require.NoError(t, err)
	return e
}

func runEngine(t *testing.T, e *Engine) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("engine did not shut down")
		}
	})
	return cancel
}

func TestEngine_InvalidConfigRejected(t *testing.T) {
	cfg := testConfig()
	cfg.Queue.Capacity = 0
	_, err := New(ConstructorConfig{Config: cfg})
	assert.Error(t, err)
}

func TestEngine_StartOrder(t *testing.T) {
	e := newTestEngine(t)

	types := make([]string, 0, len(e.Components()))
	for _, mc := range e.Components() {
		types = append(types, mc.Component.Meta().Type)
	}
	// publishers subscribe before the processor can emit anything
	assert.Equal(t, []string{"output", "output", "processor"}, types)
}

func TestEngine_EndToEndTelemetryFlow(t *testing.T) {
	e := newTestEngine(t)

	sub := e.Bus().Subscribe(bus.TopicTelemetryAccepted)
	runEngine(t, e)

	ctx := context.Background()
	c, err := e.Service().CreateCrate(ctx, "M", "merchant-1")
	require.NoError(t, err)
	_, err = e.Service().SetRecipient(ctx, c.ID, "user@example.com")
	require.NoError(t, err)
	_, _, err = e.Service().StartShipment(ctx, c.ID, "origin", "dest", "TRACK-1")
	require.NoError(t, err)

	require.NoError(t, e.Ingest(crate.Sample{
		CrateID: c.ID,
		Telemetry: crate.Telemetry{
			Temp: crate.Temperature{DegreesFahrenheit: "72.1"},
		},
	}))

	select {
	case event := <-sub.C():
		assert.Equal(t, bus.EventTelemetryAccepted, event.Header.Name)
		accepted, ok := event.Payload.(*crate.AcceptedTelemetryEvent)
		require.True(t, ok)
		assert.Equal(t, c.ID, accepted.CrateID)
	case <-time.After(2 * time.Second):
		t.Fatal("sample did not flow through the pipeline")
	}
}

func TestEngine_HealthAggregation(t *testing.T) {
	e := newTestEngine(t)

	// before starting nothing is healthy
	assert.Equal(t, health.Unhealthy, e.Health().Status)

	runEngine(t, e)
	require.Eventually(t, func() bool {
		return e.Health().Status == health.Healthy
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEngine_ReverseOrderShutdown(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool {
		for _, mc := range e.Components() {
			if mc.State != component.StateStarted {
				return false
			}
		}
		return true
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not shut down")
	}

	for _, mc := range e.Components() {
		assert.Equal(t, component.StateStopped, mc.State,
			"component %s must be stopped", mc.Component.Meta().Name)
	}
}

func TestEngine_DoubleRunRejected(t *testing.T) {
	e := newTestEngine(t)
	runEngine(t, e)

	require.Eventually(t, func() bool {
		return e.Health().Status == health.Healthy
	}, 2*time.Second, 20*time.Millisecond)

	err := e.Run(context.Background())
	assert.Error(t, err)
}

func TestEngine_DisabledTransports(t *testing.T) {
	cfg := testConfig()
	cfg.SSE.Enabled = false
	cfg.WebSocket.Enabled = false

	e, err := New(ConstructorConfig{Config: cfg})
	require.NoError(t, err)
	require.Len(t, e.Components(), 1)
	assert.Equal(t, "processor", e.Components()[0].Component.Meta().Type)
}
