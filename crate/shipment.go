package crate

import (
	"encoding/json"
)

// Shipment is one transit attempt of a crate from origin to destination.
// It owns the waypoint ledger: an ordered, append-only record of every
// accepted telemetry sample. Waypoint order is arrival order — a producer
// delivering samples out of temporal order still appends them in the order
// they arrived.
type Shipment struct {
	ID                 string         `json:"id"`
	CrateID            string         `json:"crateId"`
	MerchantID         string         `json:"merchantId"`
	RecipientID        string         `json:"recipientId,omitempty"`
	OriginAddress      string         `json:"originAddress"`
	DestinationAddress string         `json:"destinationAddress"`
	TrackingNumber     string         `json:"trackingNumber"`
	DepartureTimestamp string         `json:"departureTimestamp"`
	ArrivalTimestamp   string         `json:"arrivalTimestamp,omitempty"`
	Status             ShipmentStatus `json:"status"`

	// waypoints is unexported so the only way in is PushTelemetry and the
	// only way out is a defensive copy.
	waypoints []Waypoint
}

// Waypoints returns a copy of the waypoint ledger in arrival order.
// Mutating the returned slice has no effect on the shipment.
func (s Shipment) Waypoints() []Waypoint {
	if len(s.waypoints) == 0 {
		return nil
	}
	out := make([]Waypoint, len(s.waypoints))
	copy(out, s.waypoints)
	return out
}

// WaypointCount returns the number of recorded waypoints.
func (s Shipment) WaypointCount() int {
	return len(s.waypoints)
}

// shipmentJSON is the wire representation of a Shipment.
type shipmentJSON struct {
	ID                 string         `json:"id"`
	CrateID            string         `json:"crateId"`
	MerchantID         string         `json:"merchantId"`
	RecipientID        string         `json:"recipientId,omitempty"`
	OriginAddress      string         `json:"originAddress"`
	DestinationAddress string         `json:"destinationAddress"`
	TrackingNumber     string         `json:"trackingNumber"`
	DepartureTimestamp string         `json:"departureTimestamp"`
	ArrivalTimestamp   string         `json:"arrivalTimestamp,omitempty"`
	Status             ShipmentStatus `json:"status"`
	Waypoints          []Waypoint     `json:"waypoints"`
}

// MarshalJSON includes the waypoint ledger in the encoded shipment.
func (s Shipment) MarshalJSON() ([]byte, error) {
	return json.Marshal(shipmentJSON{
		ID:                 s.ID,
		CrateID:            s.CrateID,
		MerchantID:         s.MerchantID,
		RecipientID:        s.RecipientID,
		OriginAddress:      s.OriginAddress,
		DestinationAddress: s.DestinationAddress,
		TrackingNumber:     s.TrackingNumber,
		DepartureTimestamp: s.DepartureTimestamp,
		ArrivalTimestamp:   s.ArrivalTimestamp,
		Status:             s.Status,
		Waypoints:          s.Waypoints(),
	})
}

// UnmarshalJSON restores a shipment including its waypoint ledger.
func (s *Shipment) UnmarshalJSON(data []byte) error {
	var wire shipmentJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = Shipment{
		ID:                 wire.ID,
		CrateID:            wire.CrateID,
		MerchantID:         wire.MerchantID,
		RecipientID:        wire.RecipientID,
		OriginAddress:      wire.OriginAddress,
		DestinationAddress: wire.DestinationAddress,
		TrackingNumber:     wire.TrackingNumber,
		DepartureTimestamp: wire.DepartureTimestamp,
		ArrivalTimestamp:   wire.ArrivalTimestamp,
		Status:             wire.Status,
		waypoints:          wire.Waypoints,
	}
	return nil
}
