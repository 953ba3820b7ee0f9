package crate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/pkg/timestamp"
)

func sampleFor(crateID, degrees string) Sample {
	return Sample{
		CrateID: crateID,
		Telemetry: Telemetry{
			Temp:     Temperature{DegreesFahrenheit: degrees},
			Location: Location{Coords: Coords{Lat: 41.8, Lng: -87.6}, Zip: "60601"},
			Sensors: Sensors{
				Thermometer: SensorFlag{ThresholdExceeded: true},
			},
		},
	}
}

func TestNewCrate(t *testing.T) {
	c := NewCrate("M", "merchant-1")

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, AwaitingDeployment, c.Status)
	assert.Equal(t, "M", c.Size)
	assert.Equal(t, "merchant-1", c.MerchantID)
	assert.Empty(t, c.ActiveShipmentID)
	assert.True(t, timestamp.Valid(c.CreatedDate))
	assert.Equal(t, c.CreatedDate, c.LastModified)

	other := NewCrate("M", "merchant-1")
	assert.NotEqual(t, c.ID, other.ID, "ids must be unique")
}

func TestAssignRecipient_Once(t *testing.T) {
	c := NewCrate("S", "merchant-1")

	first, err := c.AssignRecipient(Account{ID: "user-1", Email: "user@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", first.RecipientID)
	assert.Equal(t, "user@example.com", first.RecipientEmail)

	// second assignment fails and leaves the first values intact
	second, err := first.AssignRecipient(Account{ID: "user-2", Email: "other@example.com"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRecipientAlreadyAssigned)
	assert.Equal(t, "user-1", second.RecipientID)
	assert.Equal(t, "user@example.com", second.RecipientEmail)
}

func TestAssignRecipient_EmailOnlyFallback(t *testing.T) {
	c := NewCrate("S", "merchant-1")

	// unresolved email associates with an empty account id
	updated, err := c.AssignRecipient(Account{Email: "unknown@example.com"})
	require.NoError(t, err)
	assert.Empty(t, updated.RecipientID)
	assert.Equal(t, "unknown@example.com", updated.RecipientEmail)

	_, err = updated.AssignRecipient(Account{Email: "second@example.com"})
	assert.ErrorIs(t, err, errors.ErrRecipientAlreadyAssigned,
		"email-only association still counts as assigned")
}

func TestStartShipment_Guards(t *testing.T) {
	tests := []struct {
		name    string
		crate   func() Crate
		wantErr error
	}{
		{
			name:    "missing merchant",
			crate:   func() Crate { return NewCrate("M", "") },
			wantErr: errors.ErrMissingMerchantID,
		},
		{
			name:    "missing recipient",
			crate:   func() Crate { return NewCrate("M", "merchant-1") },
			wantErr: errors.ErrMissingRecipient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.crate()
			updated, shipment, err := c.StartShipment("origin", "dest", "TRACK-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errors.IsDomain(err))

			// failed start never creates a shipment or mutates the crate
			assert.Empty(t, shipment.ID)
			assert.Equal(t, c.Status, updated.Status)
			assert.Empty(t, updated.ActiveShipmentID)
		})
	}
}

func TestStartShipment(t *testing.T) {
	c := NewCrate("M", "merchant-1")
	c, err := c.AssignRecipient(Account{ID: "user-1", Email: "user@example.com"})
	require.NoError(t, err)

	c, shipment, err := c.StartShipment("123 Origin St", "456 Dest Ave", "TRACK-1")
	require.NoError(t, err)

	assert.Equal(t, InTransit, c.Status)
	assert.Equal(t, shipment.ID, c.ActiveShipmentID)

	assert.NotEmpty(t, shipment.ID)
	assert.Equal(t, c.ID, shipment.CrateID)
	assert.Equal(t, "merchant-1", shipment.MerchantID)
	assert.Equal(t, "user-1", shipment.RecipientID)
	assert.Equal(t, InProgress, shipment.Status)
	assert.True(t, timestamp.Valid(shipment.DepartureTimestamp))
	assert.Empty(t, shipment.ArrivalTimestamp)
	assert.Zero(t, shipment.WaypointCount())
}

func shippedCrate(t *testing.T) (Crate, Shipment) {
	t.Helper()
	c := NewCrate("M", "merchant-1")
	c, err := c.AssignRecipient(Account{ID: "user-1", Email: "user@example.com"})
	require.NoError(t, err)
	c, s, err := c.StartShipment("origin", "dest", "TRACK-1")
	require.NoError(t, err)
	return c, s
}

func TestPushTelemetry_AppendsInArrivalOrder(t *testing.T) {
	c, s := shippedCrate(t)

	var event *AcceptedTelemetryEvent
	degrees := []string{"72.1", "73.5", "71.9"}
	for i, d := range degrees {
		now := timestamp.Now()
		c, s, event = PushTelemetry(c, s, sampleFor(c.ID, d), now)
		require.NotNil(t, event)
		assert.Equal(t, c.ID, event.CrateID)
		assert.Equal(t, now, event.Timestamp)
		assert.Equal(t, i+1, s.WaypointCount(), "each accepted push grows the ledger by exactly 1")
	}

	waypoints := s.Waypoints()
	require.Len(t, waypoints, 3)
	for i, d := range degrees {
		assert.Equal(t, d, waypoints[i].Telemetry.Temp.DegreesFahrenheit,
			"waypoints preserve arrival order")
	}

	assert.Equal(t, "71.9", c.Telemetry.Temp.DegreesFahrenheit, "snapshot reflects latest sample")
	assert.Equal(t, waypoints[2].Timestamp, c.LastPing)
}

func TestPushTelemetry_NoOpAfterCompletion(t *testing.T) {
	c, s := shippedCrate(t)
	c, s, _ = PushTelemetry(c, s, sampleFor(c.ID, "72.1"), timestamp.Now())
	c, s = CompleteShipment(c, s, timestamp.Now())

	for i := 0; i < 3; i++ {
		c2, s2, event := PushTelemetry(c, s, sampleFor(c.ID, "99.9"), timestamp.Now())
		assert.Nil(t, event, "completed shipment produces no event")
		assert.Equal(t, 1, s2.WaypointCount(), "frozen ledger never grows")
		assert.Equal(t, c.Telemetry, c2.Telemetry, "crate snapshot unchanged")
		assert.Equal(t, c.LastPing, c2.LastPing)
	}
}

func TestPushTelemetry_EventOnlyAfterMutation(t *testing.T) {
	c, s := shippedCrate(t)

	_, s2, event := PushTelemetry(c, s, sampleFor(c.ID, "72.1"), timestamp.Now())
	require.NotNil(t, event)
	assert.Equal(t, "72.1", event.Telemetry.Temp.DegreesFahrenheit)
	assert.Equal(t, 1, s2.WaypointCount())
	assert.Zero(t, s.WaypointCount(), "input value is untouched")
}

func TestWaypoints_DefensiveCopy(t *testing.T) {
	c, s := shippedCrate(t)
	_, s, _ = PushTelemetry(c, s, sampleFor(c.ID, "72.1"), timestamp.Now())

	view := s.Waypoints()
	view[0].Telemetry.Temp.DegreesFahrenheit = "tampered"
	_ = append(view, Waypoint{Timestamp: timestamp.Now()})

	fresh := s.Waypoints()
	require.Len(t, fresh, 1)
	assert.Equal(t, "72.1", fresh[0].Telemetry.Temp.DegreesFahrenheit,
		"external mutation must not reach the internal ledger")
}

func TestCompleteShipment(t *testing.T) {
	c, s := shippedCrate(t)
	now := timestamp.Now()
	c, s = CompleteShipment(c, s, now)

	assert.Equal(t, Complete, s.Status)
	assert.Equal(t, now, s.ArrivalTimestamp)

	assert.Equal(t, Delivered, c.Status)
	assert.Empty(t, c.RecipientID)
	assert.Empty(t, c.RecipientEmail)
	assert.Empty(t, c.ActiveShipmentID, "activeShipmentId set iff InTransit")
}

func TestMarkReturned(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   Status
	}{
		{"delivered transitions", Delivered, PendingReturn},
		{"awaiting is no-op", AwaitingDeployment, AwaitingDeployment},
		{"in transit is no-op", InTransit, InTransit},
		{"pending return is no-op", PendingReturn, PendingReturn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCrate("M", "merchant-1")
			c.Status = tt.status
			assert.Equal(t, tt.want, c.MarkReturned().Status)
		})
	}
}

// End-to-end walk through the full crate lifecycle.
func TestCrateLifecycle(t *testing.T) {
	c := NewCrate("M", "M1")

	c, err := c.AssignRecipient(Account{ID: "user-1", Email: "user@example.com"})
	require.NoError(t, err)

	c, s1, err := c.StartShipment("origin", "dest", "TRACK-1")
	require.NoError(t, err)
	assert.Equal(t, InTransit, c.Status)

	c, s1, event := PushTelemetry(c, s1, sampleFor(c.ID, "72.1"), timestamp.Now())
	require.NotNil(t, event)
	assert.Equal(t, 1, s1.WaypointCount())
	assert.Equal(t, "72.1", c.Telemetry.Temp.DegreesFahrenheit)

	c, s1 = CompleteShipment(c, s1, timestamp.Now())
	assert.Equal(t, Complete, s1.Status)
	assert.Equal(t, Delivered, c.Status)
	assert.Empty(t, c.RecipientID)
	assert.Empty(t, c.ActiveShipmentID)

	_, s1, event = PushTelemetry(c, s1, sampleFor(c.ID, "90.0"), timestamp.Now())
	assert.Nil(t, event)
	assert.Equal(t, 1, s1.WaypointCount())

	c = c.MarkReturned()
	assert.Equal(t, PendingReturn, c.Status)
}
