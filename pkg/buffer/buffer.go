// Package buffer provides a generic, thread-safe ring buffer with
// configurable overflow policies.
//
// The ring is the backing store for the telemetry ingestion queue:
//   - FIFO ordering: items are read in the order they were written
//   - Configurable overflow: DropOldest, DropNewest, Reject, or Block
//   - Statistics always enabled for observability
//   - Optional Prometheus metrics via the WithMetrics functional option
package buffer

import (
	"context"
)

// Buffer is the generic ring buffer interface, parameterized by item type T.
type Buffer[T any] interface {
	// Write adds an item to the buffer. Behavior when the buffer is full
	// depends on the overflow policy; Reject returns ErrBufferFull.
	Write(item T) error

	// WriteWithContext adds an item, honoring context cancellation when the
	// Block policy would otherwise wait for space.
	WriteWithContext(ctx context.Context, item T) error

	// Read retrieves and removes the oldest item.
	// Returns the zero value and false if the buffer is empty.
	Read() (T, bool)

	// ReadBatch retrieves and removes up to max items in FIFO order.
	// The returned slice may be shorter than max; nil when empty.
	ReadBatch(max int) []T

	// Peek returns the oldest item without removing it.
	Peek() (T, bool)

	// Size returns the current number of items in the buffer.
	Size() int

	// Capacity returns the maximum number of items the buffer can hold.
	Capacity() int

	// IsFull returns true if the buffer is at maximum capacity.
	IsFull() bool

	// IsEmpty returns true if the buffer contains no items.
	IsEmpty() bool

	// Clear removes all items from the buffer.
	Clear()

	// Stats returns buffer statistics (always available).
	Stats() *Statistics

	// Close shuts down the buffer and wakes any blocked writers.
	Close() error
}

// OverflowPolicy defines how the buffer behaves when it reaches capacity.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota

	// DropNewest silently drops new items when the buffer is full.
	DropNewest

	// Reject refuses new items with ErrBufferFull when the buffer is full.
	Reject

	// Block causes Write operations to wait until space is available.
	Block
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	case Reject:
		return "Reject"
	case Block:
		return "Block"
	default:
		return "Unknown"
	}
}

// DropCallback is invoked with each item dropped by the overflow policy.
type DropCallback[T any] func(item T)

// NewRing creates a ring buffer with the given capacity and options.
// Stats are always collected; Prometheus export is opt-in via WithMetrics.
// Returns an error if metrics registration fails when requested.
func NewRing[T any](capacity int, options ...Option[T]) (Buffer[T], error) {
	opts := applyOptions(options...)
	return newRing(capacity, opts)
}
