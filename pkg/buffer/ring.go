package buffer

import (
	"context"
	"sync"

	"github.com/seanttaylor/parcely-sub000/errors"
)

// ring is a thread-safe circular buffer with configurable overflow policies.
type ring[T any] struct {
	mu       sync.RWMutex
	items    []T
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	stats    *Statistics
	metrics  *bufferMetrics // optional Prometheus export
	opts     *bufferOptions[T]

	// Block policy coordination
	notFull *sync.Cond
	closed  bool
}

func newRing[T any](capacity int, opts *bufferOptions[T]) (*ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil && opts.metricsName != "" {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsName)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "newRing", "metrics registration")
		}
	}

	r := &ring[T]{
		items:    make([]T, capacity),
		capacity: capacity,
		stats:    NewStatistics(),
		metrics:  metrics,
		opts:     opts,
	}
	r.notFull = sync.NewCond(&r.mu)

	return r, nil
}

// trackDrop records an overflow drop in stats and optional metrics.
// Caller must hold the lock.
func (r *ring[T]) trackDrop() {
	r.stats.Overflow()
	r.stats.Drop()
	if r.metrics != nil {
		r.metrics.recordOverflow()
		r.metrics.recordDrop()
	}
}

// put appends the item and records the write. Caller must hold the lock.
func (r *ring[T]) put(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % r.capacity
	r.size++

	r.stats.Write()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordWrite(r.size, r.capacity)
	}
}

// take removes and returns the oldest item. Caller must hold the lock
// and must have verified size > 0.
func (r *ring[T]) take() T {
	var zero T
	item := r.items[r.tail]
	r.items[r.tail] = zero // clear for GC
	r.tail = (r.tail + 1) % r.capacity
	r.size--

	r.stats.Read()
	return item
}

// Write adds an item to the buffer according to the overflow policy.
func (r *ring[T]) Write(item T) error {
	return r.WriteWithContext(context.Background(), item)
}

// WriteWithContext adds an item, honoring cancellation under the Block policy.
func (r *ring[T]) WriteWithContext(ctx context.Context, item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "Write", "buffer closed")
	}

	if r.size == r.capacity {
		switch r.opts.overflowPolicy {
		case DropOldest:
			dropped := r.take()
			r.stats.UpdateSize(int64(r.size))
			r.trackDrop()
			if r.opts.dropCallback != nil {
				// invoke outside the lock to avoid deadlock
				defer r.opts.dropCallback(dropped)
			}

		case DropNewest:
			r.trackDrop()
			if r.opts.dropCallback != nil {
				defer r.opts.dropCallback(item)
			}
			return nil

		case Reject:
			r.trackDrop()
			return errors.WrapTransient(errors.ErrBufferFull, "Buffer", "Write", "write rejected")

		case Block:
			if err := r.waitForSpace(ctx); err != nil {
				return err
			}
		}
	}

	r.put(item)
	return nil
}

// waitForSpace blocks until space is available, the buffer closes, or the
// context is cancelled. Caller must hold the lock.
func (r *ring[T]) waitForSpace(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	// Broadcast is safe without the mutex; this wakes the Wait below when
	// the context is cancelled so the loop can observe ctx.Err.
	go func() {
		select {
		case <-ctx.Done():
			r.notFull.Broadcast()
		case <-done:
		}
	}()

	for r.size == r.capacity && !r.closed {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.notFull.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	if r.closed {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Buffer", "Write",
			"buffer closed during blocking wait")
	}
	return nil
}

// Read retrieves and removes the oldest item from the buffer.
func (r *ring[T]) Read() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}

	item := r.take()
	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.recordRead(r.size, r.capacity)
	}

	r.notFull.Signal()
	return item, true
}

// ReadBatch retrieves and removes up to max items in FIFO order.
func (r *ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size == 0 {
		return nil
	}

	n := max
	if n > r.size {
		n = r.size
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = r.take()
	}

	r.stats.UpdateSize(int64(r.size))
	if r.metrics != nil {
		r.metrics.updateSize(r.size, r.capacity)
		for i := 0; i < n; i++ {
			r.metrics.reads.Inc()
		}
	}

	for i := 0; i < n; i++ {
		r.notFull.Signal()
	}

	return result
}

// Peek returns the oldest item without removing it.
func (r *ring[T]) Peek() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.items[r.tail], true
}

// Size returns the current number of items in the buffer.
func (r *ring[T]) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Capacity returns the maximum number of items the buffer can hold.
func (r *ring[T]) Capacity() int {
	return r.capacity // immutable, no lock needed
}

// IsFull returns true if the buffer is at maximum capacity.
func (r *ring[T]) IsFull() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == r.capacity
}

// IsEmpty returns true if the buffer contains no items.
func (r *ring[T]) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size == 0
}

// Clear removes all items from the buffer.
func (r *ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.dropCallback != nil {
		dropped := make([]T, r.size)
		for i := 0; i < r.size; i++ {
			dropped[i] = r.items[(r.tail+i)%r.capacity]
		}
		defer func() {
			for _, item := range dropped {
				r.opts.dropCallback(item)
			}
		}()
	}

	var zero T
	for i := 0; i < r.capacity; i++ {
		r.items[i] = zero
	}
	r.head = 0
	r.tail = 0
	r.size = 0

	r.stats.UpdateSize(0)
	if r.metrics != nil {
		r.metrics.updateSize(0, r.capacity)
	}

	r.notFull.Broadcast()
}

// Stats returns buffer statistics (always available).
func (r *ring[T]) Stats() *Statistics {
	return r.stats
}

// Close shuts down the buffer and wakes any blocked writers.
func (r *ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.notFull.Broadcast()
	return nil
}
