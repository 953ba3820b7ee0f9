package websocket

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/crate"
)

func newTestOutput(t *testing.T, b *bus.Bus) *Output {
	t.Helper()
	o, err := New(ConstructorConfig{
		Config: Config{WriteTimeout: time.Second, PingInterval: 50 * time.Millisecond},
		Bus:    b,
	})
	require.NoError(t, err)
	return o
}

func dial(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	return data
}

func TestWebSocket_BroadcastEnvelope(t *testing.T) {
	b := bus.New(bus.ConstructorConfig{})
	o := newTestOutput(t, b)

	server := httptest.NewServer(o.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	require.Eventually(t, func() bool { return o.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	o.Publish(bus.EventTelemetryAccepted, &crate.AcceptedTelemetryEvent{
		CrateID:   "crate-1",
		Timestamp: "2026-08-29T12:00:00Z",
	})

	var envelope struct {
		Header  bus.Header                   `json:"header"`
		Payload crate.AcceptedTelemetryEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &envelope))
	assert.Equal(t, "TELEMETRY_ACCEPTED", envelope.Header.Name)
	assert.NotEmpty(t, envelope.Header.ID)
	assert.NotEmpty(t, envelope.Header.Timestamp)
	assert.Equal(t, "crate-1", envelope.Payload.CrateID)
}

func TestWebSocket_FanOutToMultipleClients(t *testing.T) {
	b := bus.New(bus.ConstructorConfig{})
	o := newTestOutput(t, b)

	server := httptest.NewServer(o.Handler())
	defer server.Close()

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, server.URL)
	}
	require.Eventually(t, func() bool { return o.ClientCount() == 3 },
		time.Second, 10*time.Millisecond)

	o.Publish(bus.EventTelemetryAccepted, &crate.AcceptedTelemetryEvent{CrateID: "crate-1"})

	for i, conn := range conns {
		var envelope struct {
			Payload crate.AcceptedTelemetryEvent `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(readFrame(t, conn), &envelope), "client %d", i)
		assert.Equal(t, "crate-1", envelope.Payload.CrateID, "client %d", i)
	}
}

func TestWebSocket_DisconnectDeregisters(t *testing.T) {
	b := bus.New(bus.ConstructorConfig{})
	o := newTestOutput(t, b)

	server := httptest.NewServer(o.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	require.Eventually(t, func() bool { return o.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return o.ClientCount() == 0 },
		2*time.Second, 10*time.Millisecond,
		"client disconnect must deregister the connection")

	// broadcasting afterwards must not fail
	o.Publish(bus.EventTelemetryAccepted, &crate.AcceptedTelemetryEvent{CrateID: "crate-1"})

	// a surviving client is unaffected by the departed one
	survivor := dial(t, server.URL)
	require.Eventually(t, func() bool { return o.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	o.Publish(bus.EventTelemetryAccepted, &crate.AcceptedTelemetryEvent{CrateID: "crate-2"})

	var envelope struct {
		Payload crate.AcceptedTelemetryEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(readFrame(t, survivor), &envelope))
	assert.Equal(t, "crate-2", envelope.Payload.CrateID)
}

func TestWebSocket_BusEventsReachClients(t *testing.T) {
	b := bus.New(bus.ConstructorConfig{})
	o, err := New(ConstructorConfig{
		Config: Config{Host: "127.0.0.1", Port: 0, WriteTimeout: time.Second},
		Bus:    b,
	})
	require.NoError(t, err)

	require.NoError(t, o.Initialize())
	require.NoError(t, o.Start(context.Background()))
	defer func() { _ = o.Stop(2 * time.Second) }()

	server := httptest.NewServer(o.Handler())
	defer server.Close()

	conn := dial(t, server.URL)
	require.Eventually(t, func() bool { return o.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)

	b.Publish(bus.TopicTelemetryAccepted,
		bus.NewEvent(bus.EventTelemetryAccepted, &crate.AcceptedTelemetryEvent{CrateID: "crate-1"}))

	var envelope struct {
		Header bus.Header `json:"header"`
	}
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &envelope))
	assert.Equal(t, "TELEMETRY_ACCEPTED", envelope.Header.Name)
}

func TestWebSocket_Lifecycle(t *testing.T) {
	b := bus.New(bus.ConstructorConfig{})
	o, err := New(ConstructorConfig{
		Config: Config{Host: "127.0.0.1", Port: 0},
		Bus:    b,
	})
	require.NoError(t, err)

	assert.Error(t, o.Start(context.Background()), "start before initialize rejected")

	require.NoError(t, o.Initialize())
	require.NoError(t, o.Start(context.Background()))
	assert.Error(t, o.Start(context.Background()), "double start rejected")
	assert.True(t, o.Health().Healthy)

	assert.Equal(t, "output", o.Meta().Type)
	require.Len(t, o.OutputPorts(), 1)
	assert.Equal(t, "network", o.OutputPorts()[0].Config.Type())

	require.NoError(t, o.Stop(2*time.Second))
	assert.Error(t, o.Stop(time.Second), "double stop rejected")
	assert.False(t, o.Health().Healthy)
}

func TestWebSocket_MissingBus(t *testing.T) {
	_, err := New(ConstructorConfig{})
	assert.Error(t, err)
}
