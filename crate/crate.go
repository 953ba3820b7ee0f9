package crate

import (
	"github.com/google/uuid"

	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/pkg/timestamp"
)

// Crate is the addressable shipping unit. Crates are immutable value types:
// every transition returns a new Crate rather than mutating the receiver, so
// callers never observe partially applied state.
type Crate struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	Size             string    `json:"size"`
	MerchantID       string    `json:"merchantId,omitempty"`
	RecipientID      string    `json:"recipientId,omitempty"`
	RecipientEmail   string    `json:"recipientEmail,omitempty"`
	ActiveShipmentID string    `json:"activeShipmentId,omitempty"`
	Telemetry        Telemetry `json:"telemetry"`
	LastPing         string    `json:"lastPing,omitempty"`
	CreatedDate      string    `json:"createdDate"`
	LastModified     string    `json:"lastModified"`
}

// NewCrate creates a crate in AwaitingDeployment. merchantID may be empty;
// a merchant must be associated before a shipment can start.
func NewCrate(size, merchantID string) Crate {
	now := timestamp.Now()
	return Crate{
		ID:           uuid.NewString(),
		Status:       AwaitingDeployment,
		Size:         size,
		MerchantID:   merchantID,
		CreatedDate:  now,
		LastModified: now,
	}
}

// AssignRecipient associates the crate with a recipient exactly once.
// Returns ErrRecipientAlreadyAssigned without mutating when a recipient
// email is already set. The account carries an empty ID when the email
// could not be resolved to a known user (email-only association).
func (c Crate) AssignRecipient(account Account) (Crate, error) {
	if c.RecipientEmail != "" {
		return c, errors.WrapInvalid(errors.ErrRecipientAlreadyAssigned,
			"Crate", "AssignRecipient", "recipient assignment")
	}

	c.RecipientID = account.ID
	c.RecipientEmail = account.Email
	c.LastModified = timestamp.Now()
	return c, nil
}

// StartShipment transitions the crate to InTransit and creates its active
// shipment. Fails with ErrMissingMerchantID or ErrMissingRecipient when the
// crate is not ready to ship; neither failure creates a shipment record.
func (c Crate) StartShipment(originAddress, destinationAddress, trackingNumber string) (Crate, Shipment, error) {
	if c.MerchantID == "" {
		return c, Shipment{}, errors.WrapInvalid(errors.ErrMissingMerchantID,
			"Crate", "StartShipment", "shipment start")
	}
	if c.RecipientEmail == "" {
		return c, Shipment{}, errors.WrapInvalid(errors.ErrMissingRecipient,
			"Crate", "StartShipment", "shipment start")
	}

	now := timestamp.Now()
	shipment := Shipment{
		ID:                 uuid.NewString(),
		CrateID:            c.ID,
		MerchantID:         c.MerchantID,
		RecipientID:        c.RecipientID,
		OriginAddress:      originAddress,
		DestinationAddress: destinationAddress,
		TrackingNumber:     trackingNumber,
		DepartureTimestamp: now,
		Status:             InProgress,
	}

	c.Status = InTransit
	c.ActiveShipmentID = shipment.ID
	c.LastModified = now
	return c, shipment, nil
}

// PushTelemetry applies a telemetry sample to the crate and its shipment.
// While the shipment is InProgress it appends a waypoint in arrival order,
// updates the crate's telemetry snapshot and lastPing, and returns the
// accepted event. Once the shipment is Complete the call is inert: inputs
// are returned unchanged and the event is nil. The nil event is how callers
// distinguish "accepted" from "no-op"; a completed shipment is not an error.
func PushTelemetry(c Crate, s Shipment, sample Sample, now string) (Crate, Shipment, *AcceptedTelemetryEvent) {
	if s.Status == Complete {
		return c, s, nil
	}

	waypoint := Waypoint{
		Timestamp: now,
		Telemetry: sample.Telemetry,
	}

	// copy-on-append so prior Shipment values never alias the new ledger
	waypoints := make([]Waypoint, len(s.waypoints), len(s.waypoints)+1)
	copy(waypoints, s.waypoints)
	s.waypoints = append(waypoints, waypoint)

	c.Telemetry = sample.Telemetry
	c.LastPing = now
	c.LastModified = now

	event := &AcceptedTelemetryEvent{
		CrateID:   c.ID,
		Telemetry: sample.Telemetry,
		Timestamp: now,
	}
	return c, s, event
}

// CompleteShipment finishes the shipment and delivers the crate: shipment
// Complete with arrivalTimestamp, crate Delivered with recipient fields and
// activeShipmentId cleared. Completion is irreversible.
func CompleteShipment(c Crate, s Shipment, now string) (Crate, Shipment) {
	s.Status = Complete
	s.ArrivalTimestamp = now

	c.Status = Delivered
	c.RecipientID = ""
	c.RecipientEmail = ""
	c.ActiveShipmentID = ""
	c.LastModified = now
	return c, s
}

// MarkReturned transitions a Delivered crate to PendingReturn. Any other
// starting status returns the crate unchanged; callers detect the no-op by
// comparing status.
func (c Crate) MarkReturned() Crate {
	if c.Status != Delivered {
		return c
	}
	c.Status = PendingReturn
	c.LastModified = timestamp.Now()
	return c
}
