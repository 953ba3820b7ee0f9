package natsingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/queue"
)

func newTestInput(t *testing.T, cfg Config) (*Input, *queue.Queue) {
	t.Helper()
	q, err := queue.New(queue.ConstructorConfig{Config: queue.Config{Capacity: 8}})
	require.NoError(t, err)

	in, err := New(ConstructorConfig{Config: cfg, Queue: q})
	require.NoError(t, err)
	return in, q
}

func rawSample(t *testing.T, crateID, degrees string) []byte {
	t.Helper()
	data, err := json.Marshal(crate.Sample{
		CrateID: crateID,
		Telemetry: crate.Telemetry{
			Temp: crate.Temperature{DegreesFahrenheit: degrees},
		},
	})
	require.NoError(t, err)
	return data
}

func TestIngest_DecodesAndEnqueues(t *testing.T) {
	in, q := newTestInput(t, Config{})

	in.Ingest(context.Background(), rawSample(t, "crate-1", "72.1"))

	require.Equal(t, 1, q.Size())
	batch := q.DequeueBatch(10)
	require.Len(t, batch, 1)
	assert.Equal(t, "crate-1", batch[0].CrateID)
	assert.Equal(t, "72.1", batch[0].Telemetry.Temp.DegreesFahrenheit)
}

func TestIngest_MalformedPayloadDropped(t *testing.T) {
	in, q := newTestInput(t, Config{})

	in.Ingest(context.Background(), []byte("not json"))
	in.Ingest(context.Background(), []byte(`{"crateId": 42}`))

	assert.Zero(t, q.Size(), "malformed payloads never reach the queue")
	assert.Equal(t, 2, in.Health().ErrorCount)
}

func TestIngest_MissingCrateIDDropped(t *testing.T) {
	in, q := newTestInput(t, Config{})

	in.Ingest(context.Background(), []byte(`{"telemetry":{"temp":{"degreesFahrenheit":"70.0"}}}`))

	assert.Zero(t, q.Size())
	assert.Equal(t, 1, in.Health().ErrorCount)
}

func TestIngest_FullQueueRejectsWithoutPanic(t *testing.T) {
	in, q := newTestInput(t, Config{})

	for i := 0; i < 12; i++ {
		in.Ingest(context.Background(), rawSample(t, "crate-1", "70.0"))
	}

	assert.Equal(t, 8, q.Size(), "queue holds at most its capacity")
}

func TestIngest_PreservesArrivalOrder(t *testing.T) {
	in, q := newTestInput(t, Config{})

	degrees := []string{"70.0", "71.0", "72.0"}
	for _, d := range degrees {
		in.Ingest(context.Background(), rawSample(t, "crate-1", d))
	}

	batch := q.DequeueBatch(10)
	require.Len(t, batch, len(degrees))
	for i, want := range degrees {
		assert.Equal(t, want, batch[i].Telemetry.Temp.DegreesFahrenheit)
	}
}

func TestInput_LifecycleWithoutClient(t *testing.T) {
	in, _ := newTestInput(t, Config{})

	require.NoError(t, in.Initialize())
	require.NoError(t, in.Start(context.Background()))
	assert.Error(t, in.Start(context.Background()), "double start rejected")
	assert.True(t, in.Health().Healthy)

	assert.Equal(t, "input", in.Meta().Type)
	require.Len(t, in.InputPorts(), 1)
	assert.Equal(t, "nats", in.InputPorts()[0].Config.Type())
	require.Len(t, in.OutputPorts(), 1)
	assert.Equal(t, "queue", in.OutputPorts()[0].Config.Type())

	require.NoError(t, in.Stop(time.Second))
	assert.Error(t, in.Stop(time.Second), "double stop rejected")
}

func TestInput_DefaultSubject(t *testing.T) {
	in, _ := newTestInput(t, Config{})
	assert.Equal(t, DefaultSubject, in.InputPorts()[0].Config.(component.NATSPort).Subject)
}

func TestInput_MissingQueue(t *testing.T) {
	_, err := New(ConstructorConfig{})
	assert.Error(t, err)
}
