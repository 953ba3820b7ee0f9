package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/queue"
	"github.com/seanttaylor/parcely-sub000/repository"
)

type pipeline struct {
	queue     *queue.Queue
	service   *repository.Service
	bus       *bus.Bus
	processor *Processor
	crates    *repository.MemoryCrateRepository
	shipments *repository.MemoryShipmentRepository
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	crates := repository.NewMemoryCrateRepository()
	shipments := repository.NewMemoryShipmentRepository()
	svc := repository.NewService(repository.ServiceConfig{
		Crates:    crates,
		Shipments: shipments,
		Accounts:  repository.NewStaticAccountResolver(crate.Account{ID: "user-1", Email: "user@example.com"}),
	})

	q, err := queue.New(queue.ConstructorConfig{})
	require.NoError(t, err)
	b := bus.New(bus.ConstructorConfig{})

	p, err := New(ConstructorConfig{
		Queue:   q,
		Service: svc,
		Bus:     b,
	})
	require.NoError(t, err)

	return &pipeline{queue: q, service: svc, bus: b, processor: p, crates: crates, shipments: shipments}
}

func (pl *pipeline) start(t *testing.T) {
	t.Helper()
	require.NoError(t, pl.processor.Initialize())
	require.NoError(t, pl.processor.Start(context.Background()))
	t.Cleanup(func() {
		_ = pl.processor.Stop(2 * time.Second)
		pl.bus.Close()
	})
}

func (pl *pipeline) shippedCrate(t *testing.T) crate.Crate {
	t.Helper()
	ctx := context.Background()
	c, err := pl.service.CreateCrate(ctx, "M", "merchant-1")
	require.NoError(t, err)
	_, err = pl.service.SetRecipient(ctx, c.ID, "user@example.com")
	require.NoError(t, err)
	updated, _, err := pl.service.StartShipment(ctx, c.ID, "origin", "dest", "TRACK-1")
	require.NoError(t, err)
	return updated
}

func sampleFor(crateID, degrees string) crate.Sample {
	return crate.Sample{
		CrateID: crateID,
		Telemetry: crate.Telemetry{
			Temp: crate.Temperature{DegreesFahrenheit: degrees},
		},
	}
}

func waitForEvent(t *testing.T, sub *bus.Subscription) bus.Event {
	t.Helper()
	select {
	case event := <-sub.C():
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return bus.Event{}
	}
}

func TestProcessor_PublishesAcceptedEvent(t *testing.T) {
	pl := newPipeline(t)
	sub := pl.bus.Subscribe(bus.TopicTelemetryAccepted)
	pl.start(t)

	c := pl.shippedCrate(t)
	_, err := pl.queue.Enqueue(sampleFor(c.ID, "72.1"))
	require.NoError(t, err)

	event := waitForEvent(t, sub)
	assert.Equal(t, bus.EventTelemetryAccepted, event.Header.Name)
	assert.NotEmpty(t, event.Header.ID)

	accepted, ok := event.Payload.(*crate.AcceptedTelemetryEvent)
	require.True(t, ok)
	assert.Equal(t, c.ID, accepted.CrateID)
	assert.Equal(t, "72.1", accepted.Telemetry.Temp.DegreesFahrenheit)
}

func TestProcessor_PublishesOnlyAfterCommit(t *testing.T) {
	pl := newPipeline(t)
	sub := pl.bus.Subscribe(bus.TopicTelemetryAccepted)
	pl.start(t)

	c := pl.shippedCrate(t)
	_, err := pl.queue.Enqueue(sampleFor(c.ID, "72.1"))
	require.NoError(t, err)

	event := waitForEvent(t, sub)
	accepted := event.Payload.(*crate.AcceptedTelemetryEvent)

	// by the time the event is observable, the stores already hold the
	// mutated state
	storedCrate, err := pl.crates.FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, accepted.Timestamp, storedCrate.LastPing)

	storedShipment, err := pl.shipments.FindByID(context.Background(), storedCrate.ActiveShipmentID)
	require.NoError(t, err)
	assert.Equal(t, 1, storedShipment.WaypointCount())
}

func TestProcessor_PerCrateOrdering(t *testing.T) {
	pl := newPipeline(t)
	sub := pl.bus.Subscribe(bus.TopicTelemetryAccepted)
	pl.start(t)

	c := pl.shippedCrate(t)
	degrees := []string{"70.0", "71.0", "72.0", "73.0", "74.0"}
	for _, d := range degrees {
		_, err := pl.queue.Enqueue(sampleFor(c.ID, d))
		require.NoError(t, err)
	}

	for _, want := range degrees {
		event := waitForEvent(t, sub)
		accepted := event.Payload.(*crate.AcceptedTelemetryEvent)
		assert.Equal(t, want, accepted.Telemetry.Temp.DegreesFahrenheit,
			"events must follow queue arrival order")
	}

	stored, err := pl.shipments.FindByCrate(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	waypoints := stored[0].Waypoints()
	require.Len(t, waypoints, len(degrees))
	for i, want := range degrees {
		assert.Equal(t, want, waypoints[i].Telemetry.Temp.DegreesFahrenheit)
	}
}

func TestProcessor_DropsUnknownCrate(t *testing.T) {
	pl := newPipeline(t)
	sub := pl.bus.Subscribe(bus.TopicTelemetryAccepted)
	pl.start(t)

	c := pl.shippedCrate(t)
	_, err := pl.queue.Enqueue(sampleFor("no-such-crate", "50.0"))
	require.NoError(t, err)
	_, err = pl.queue.Enqueue(sampleFor(c.ID, "72.1"))
	require.NoError(t, err)

	// the unknown-crate sample vanishes; the valid one flows through
	event := waitForEvent(t, sub)
	accepted := event.Payload.(*crate.AcceptedTelemetryEvent)
	assert.Equal(t, c.ID, accepted.CrateID)

	select {
	case <-sub.C():
		t.Fatal("dropped sample must not produce an event")
	case <-time.After(100 * time.Millisecond):
	}

	// the drop is not a health error
	assert.Zero(t, pl.processor.Health().ErrorCount)
}

func TestProcessor_NoEventForCompletedShipment(t *testing.T) {
	pl := newPipeline(t)
	sub := pl.bus.Subscribe(bus.TopicTelemetryAccepted)
	pl.start(t)

	c := pl.shippedCrate(t)
	_, _, err := pl.service.CompleteShipment(context.Background(), c.ID)
	require.NoError(t, err)

	_, err = pl.queue.Enqueue(sampleFor(c.ID, "72.1"))
	require.NoError(t, err)

	select {
	case <-sub.C():
		t.Fatal("telemetry for a delivered crate must be a silent no-op")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestProcessor_Lifecycle(t *testing.T) {
	pl := newPipeline(t)
	p := pl.processor

	require.NoError(t, p.Initialize())
	require.NoError(t, p.Start(context.Background()))

	err := p.Start(context.Background())
	assert.Error(t, err, "double start rejected")

	assert.True(t, p.Health().Healthy)
	assert.Equal(t, "processor", p.Meta().Type)
	assert.Len(t, p.InputPorts(), 1)
	assert.Len(t, p.OutputPorts(), 1)

	require.NoError(t, p.Stop(2*time.Second))
	assert.Error(t, p.Stop(time.Second), "double stop rejected")
	assert.False(t, p.Health().Healthy)
}

func TestProcessor_DrainsPendingOnShutdown(t *testing.T) {
	pl := newPipeline(t)
	c := pl.shippedCrate(t)

	// enqueue before the processor ever starts
	for i := 0; i < 3; i++ {
		_, err := pl.queue.Enqueue(sampleFor(c.ID, "70.0"))
		require.NoError(t, err)
	}

	require.NoError(t, pl.processor.Initialize())
	require.NoError(t, pl.processor.Start(context.Background()))
	require.NoError(t, pl.processor.Stop(2*time.Second))

	stored, err := pl.shipments.FindByCrate(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 3, stored[0].WaypointCount(), "pending samples applied before shutdown")
}

func TestProcessor_MissingDependencies(t *testing.T) {
	_, err := New(ConstructorConfig{})
	assert.Error(t, err)
}
