// Package parcely implements a crate telemetry pipeline: sensor samples
// from smart shipping crates are ingested, ordered, applied to an
// append-only crate/shipment aggregate and broadcast to realtime
// subscribers.
//
// # Architecture
//
// The pipeline is a chain of lifecycle components wired once at startup:
//
//	producer → ingestion queue → telemetry processor → event bus → publishers
//
//	┌──────────────┐   ┌─────────────┐   ┌────────────────────┐
//	│ NATS ingest  │ → │  queue/     │ → │ processor/telemetry│
//	│ (optional)   │   │  FIFO queue │   │  single consumer   │
//	└──────────────┘   └─────────────┘   └─────────┬──────────┘
//	                                               │ mutate, then publish
//	                                     ┌─────────▼──────────┐
//	                                     │       bus/         │
//	                                     │  in-process topics │
//	                                     └─────┬───────┬──────┘
//	                                           │       │
//	                                  ┌────────▼──┐ ┌──▼──────────┐
//	                                  │ output/sse│ │ output/     │
//	                                  │           │ │ websocket   │
//	                                  └───────────┘ └─────────────┘
//
// Domain state lives in the crate package: crates and shipments are
// immutable value types whose operations return updated copies, and a
// shipment's waypoint history is append-only in telemetry arrival order.
// The repository package persists them behind storage interfaces and
// serializes concurrent mutations per crate.
//
// Ordering is achieved structurally: the queue is FIFO and the processor
// is its only consumer, so events for a crate are published in the order
// its samples arrived. An accepted-telemetry event is published only after
// both the shipment and crate writes have committed.
//
// The engine package assembles everything from configuration; cmd/parcely
// is the binary.
package parcely
