package crate

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a Crate.
type Status int

// Crate lifecycle states. A crate is created AwaitingDeployment, moves to
// InTransit when a shipment starts, Delivered when it completes, and
// PendingReturn once the merchant requests the crate back.
const (
	AwaitingDeployment Status = iota
	InTransit
	Delivered
	PendingReturn
)

var statusNames = map[Status]string{
	AwaitingDeployment: "awaitingDeployment",
	InTransit:          "inTransit",
	Delivered:          "delivered",
	PendingReturn:      "pendingReturn",
}

var statusValues = map[string]Status{
	"awaitingDeployment": AwaitingDeployment,
	"inTransit":          InTransit,
	"delivered":          Delivered,
	"pendingReturn":      PendingReturn,
}

// String returns the wire name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the status as its wire name.
func (s Status) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown crate status %d", int(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a status from its wire name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	value, ok := statusValues[name]
	if !ok {
		return fmt.Errorf("unknown crate status %q", name)
	}
	*s = value
	return nil
}

// ShipmentStatus is the lifecycle state of a Shipment.
type ShipmentStatus int

// Shipment lifecycle states. Completion is irreversible.
const (
	InProgress ShipmentStatus = iota
	Complete
)

var shipmentStatusNames = map[ShipmentStatus]string{
	InProgress: "inProgress",
	Complete:   "complete",
}

var shipmentStatusValues = map[string]ShipmentStatus{
	"inProgress": InProgress,
	"complete":   Complete,
}

// String returns the wire name of the shipment status.
func (s ShipmentStatus) String() string {
	if name, ok := shipmentStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the shipment status as its wire name.
func (s ShipmentStatus) MarshalJSON() ([]byte, error) {
	name, ok := shipmentStatusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown shipment status %d", int(s))
	}
	return json.Marshal(name)
}

// UnmarshalJSON decodes a shipment status from its wire name.
func (s *ShipmentStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	value, ok := shipmentStatusValues[name]
	if !ok {
		return fmt.Errorf("unknown shipment status %q", name)
	}
	*s = value
	return nil
}
