package crate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanttaylor/parcely-sub000/pkg/timestamp"
)

func TestStatus_WireNames(t *testing.T) {
	data, err := json.Marshal(InTransit)
	require.NoError(t, err)
	assert.Equal(t, `"inTransit"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"pendingReturn"`), &s))
	assert.Equal(t, PendingReturn, s)

	assert.Error(t, json.Unmarshal([]byte(`"shipped"`), &s), "unknown status rejected")
	assert.Error(t, json.Unmarshal([]byte(`["inTransit"]`), &s), "status is a plain string, not a list")
}

func TestShipment_JSONIncludesWaypoints(t *testing.T) {
	c, s := shippedCrate(t)
	_, s, _ = PushTelemetry(c, s, sampleFor(c.ID, "72.1"), timestamp.Now())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"inProgress"`)
	assert.Contains(t, string(data), `"degreesFahrenheit":"72.1"`)

	var restored Shipment
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.Equal(t, s.ID, restored.ID)
	require.Equal(t, 1, restored.WaypointCount())
	assert.Equal(t, s.Waypoints(), restored.Waypoints())
}
