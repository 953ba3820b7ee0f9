// Package queue implements the telemetry ingestion queue: the ordering
// buffer between concurrent telemetry producers and the single processor
// that applies samples to the crate aggregate.
//
// The queue guarantees first-in-first-out ordering between Enqueue and
// DequeueBatch under concurrent producers. It is in-memory and not durable;
// a process crash loses unconsumed entries, which is an accepted limitation
// of this pipeline.
package queue

import (
	stderrors "errors"
	"log/slog"

	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/metric"
	"github.com/seanttaylor/parcely-sub000/pkg/buffer"
)

// DefaultCapacity bounds the queue when no capacity is configured.
const DefaultCapacity = 4096

// Config holds queue configuration.
type Config struct {
	// Capacity is the maximum number of pending samples. Enqueue rejects
	// over capacity; producers decide whether to drop or surface the error.
	Capacity int `json:"capacity"`
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{Capacity: DefaultCapacity}
}

// ConstructorConfig holds dependencies for creating a Queue.
type ConstructorConfig struct {
	Config   Config
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
}

// Queue is the FIFO ingestion queue. Safe for concurrent enqueue from many
// producers and a single draining consumer.
type Queue struct {
	buf    buffer.Buffer[crate.Sample]
	notify chan struct{}
	logger *slog.Logger
	core   *metric.Metrics
}

// New creates an ingestion queue.
func New(cfg ConstructorConfig) (*Queue, error) {
	capacity := cfg.Config.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []buffer.Option[crate.Sample]{
		buffer.WithOverflowPolicy[crate.Sample](buffer.Reject),
	}
	if cfg.Registry != nil {
		opts = append(opts, buffer.WithMetrics[crate.Sample](cfg.Registry, "ingestion-queue"))
	}

	buf, err := buffer.NewRing(capacity, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "Queue", "New", "buffer construction")
	}

	q := &Queue{
		buf: buf,
		// capacity 1: repeated signals while the processor is busy
		// coalesce into a single pending wakeup
		notify: make(chan struct{}, 1),
		logger: logger.With("component", "ingestion-queue"),
	}
	if cfg.Registry != nil {
		q.core = cfg.Registry.CoreMetrics()
	}
	return q, nil
}

// Enqueue adds a sample and returns the new queue depth. Non-blocking: a
// full queue rejects with a transient error rather than stalling producers.
func (q *Queue) Enqueue(sample crate.Sample) (int, error) {
	if err := q.buf.Write(sample); err != nil {
		if stderrors.Is(err, errors.ErrBufferFull) {
			q.logger.Warn("sample rejected, queue at capacity", "crateId", sample.CrateID)
		}
		return q.buf.Size(), err
	}

	depth := q.buf.Size()
	if q.core != nil {
		q.core.RecordSampleEnqueued("ingestion-queue")
		q.core.RecordQueueDepth(depth)
	}

	q.signal()
	return depth, nil
}

// DequeueBatch removes and returns up to max pending samples in FIFO order.
func (q *Queue) DequeueBatch(max int) []crate.Sample {
	batch := q.buf.ReadBatch(max)
	if q.core != nil {
		q.core.RecordQueueDepth(q.buf.Size())
	}
	return batch
}

// Size returns the current number of pending samples.
func (q *Queue) Size() int {
	return q.buf.Size()
}

// Notify returns the "samples available" channel. The signal is coalesced:
// a burst of enqueues while the consumer is draining produces at most one
// additional wakeup, and the consumer drains until empty on each one.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Close shuts down the queue. Pending samples remain readable; further
// enqueues fail.
func (q *Queue) Close() error {
	return q.buf.Close()
}

// Stats exposes the backing buffer statistics.
func (q *Queue) Stats() *buffer.Statistics {
	return q.buf.Stats()
}

func (q *Queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
