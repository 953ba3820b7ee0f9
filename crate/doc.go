// Package crate implements the crate/shipment aggregate: the append-only
// domain state machine at the center of the telemetry pipeline.
//
// A Crate is created AwaitingDeployment, transitions to InTransit when a
// Shipment starts, Delivered when the shipment completes, and PendingReturn
// when the merchant requests the crate back. Each Crate owns at most one
// active Shipment; the Shipment owns an ordered, append-only waypoint ledger
// recording every accepted telemetry sample in arrival order.
//
// All types are immutable values: operations take values and return new
// values, never mutating shared state in place. Rules enforced here:
//
//   - activeShipmentId is set iff the crate is InTransit
//   - a recipient may be assigned exactly once while unset
//   - a Complete shipment's waypoints are frozen; further telemetry is a
//     silent no-op distinguished by a nil AcceptedTelemetryEvent
//   - the exposed waypoint view is always a defensive copy
//
// Mutation of stored crates and shipments goes through repository.Service;
// no other component may read-modify-write aggregate state.
package crate
