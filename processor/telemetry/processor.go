// Package telemetry implements the telemetry processor: the single consumer
// that drains the ingestion queue and applies samples to the crate aggregate.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/metric"
	"github.com/seanttaylor/parcely-sub000/queue"
	"github.com/seanttaylor/parcely-sub000/repository"
)

const componentName = "telemetry-processor"

// DefaultBatchSize bounds each drain cycle.
const DefaultBatchSize = 64

// Config holds processor configuration.
type Config struct {
	// BatchSize is the maximum number of samples dequeued per cycle.
	BatchSize int `json:"batchSize"`
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() Config {
	return Config{BatchSize: DefaultBatchSize}
}

// ConstructorConfig holds dependencies for creating a Processor.
type ConstructorConfig struct {
	Config   Config
	Queue    *queue.Queue
	Service  *repository.Service
	Bus      *bus.Bus
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
}

// Processor drains the ingestion queue on the queue's notify signal and
// applies each sample in dequeue order. Samples for an unknown crate are
// dropped, never requeued: stale telemetry has no value once superseded.
// An accepted event is published only after the aggregate mutation has
// committed.
type Processor struct {
	config  Config
	queue   *queue.Queue
	service *repository.Service
	bus     *bus.Bus
	logger  *slog.Logger
	metrics *Metrics

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	startTime        time.Time
	samplesProcessed atomic.Int64
	errorCount       atomic.Int64
	lastError        atomic.Value // string
	lastActivity     atomic.Value // time.Time
}

// New creates a telemetry processor.
func New(cfg ConstructorConfig) (*Processor, error) {
	if cfg.Queue == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Processor", "New", "queue dependency")
	}
	if cfg.Service == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Processor", "New", "service dependency")
	}
	if cfg.Bus == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Processor", "New", "bus dependency")
	}

	config := cfg.Config
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "Processor", "New", "metrics registration")
	}

	return &Processor{
		config:  config,
		queue:   cfg.Queue,
		service: cfg.Service,
		bus:     cfg.Bus,
		logger:  logger.With("component", componentName),
		metrics: metrics,
	}, nil
}

// Initialize prepares the processor for starting.
func (p *Processor) Initialize() error {
	p.startTime = time.Now()
	return nil
}

// Start launches the drain loop. The processor is the pipeline's single
// consumer; per-crate ordering equals dequeue order because one goroutine
// applies every sample.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Processor", "Start", "start")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true

	p.wg.Add(1)
	go p.run(runCtx)

	p.logger.Info("telemetry processor started", "batchSize", p.config.BatchSize)
	return nil
}

// Stop cancels the drain loop and waits up to timeout for it to finish.
func (p *Processor) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Processor", "Stop", "stop")
	}
	p.started = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("telemetry processor stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrConnectionTimeout, "Processor", "Stop", "drain loop shutdown")
	}
}

func (p *Processor) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			// apply whatever is still pending; the queue is not durable
			p.drain(ctx)
			return
		case <-p.queue.Notify():
			p.drain(ctx)
		}
	}
}

// drain empties the queue in FIFO batches. A batch, once dequeued, is always
// fully applied or individually dropped; there is no batch-level cancel.
func (p *Processor) drain(ctx context.Context) {
	for {
		batch := p.queue.DequeueBatch(p.config.BatchSize)
		if len(batch) == 0 {
			return
		}
		p.metrics.recordBatch(len(batch))

		for _, sample := range batch {
			p.apply(ctx, sample)
		}
	}
}

func (p *Processor) apply(ctx context.Context, sample crate.Sample) {
	start := time.Now()
	event, err := p.service.ApplyTelemetry(ctx, sample)
	p.metrics.recordApplyDuration(time.Since(start))

	p.samplesProcessed.Add(1)
	p.lastActivity.Store(time.Now())

	switch {
	case err != nil && errors.IsNotFound(err):
		// unknown crate: report and drop, never requeue
		p.metrics.recordDropped()
		p.logger.Warn("sample dropped, crate not resolved", "crateId", sample.CrateID)

	case err != nil:
		// infrastructure failure, propagated unmodified by the service
		p.metrics.recordError()
		p.errorCount.Add(1)
		p.lastError.Store(err.Error())
		p.logger.Error("telemetry apply failed", "crateId", sample.CrateID, "error", err)

	case event == nil:
		p.metrics.recordNoop()

	default:
		// mutation committed; only now does the event reach subscribers
		p.bus.Publish(bus.TopicTelemetryAccepted, bus.NewEvent(bus.EventTelemetryAccepted, event))
		p.metrics.recordAccepted()
	}
}

// Meta returns component metadata.
func (p *Processor) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "processor",
		Description: "Applies queued telemetry samples to crates and publishes accepted events",
		Version:     "1.0.0",
	}
}

// InputPorts returns the processor's input ports.
func (p *Processor) InputPorts() []component.Port {
	return []component.Port{{
		Name:        "samples",
		Direction:   component.DirectionInput,
		Required:    true,
		Description: "Ingestion queue drained on notify",
		Config:      component.QueuePort{Name: "ingestion-queue"},
	}}
}

// OutputPorts returns the processor's output ports.
func (p *Processor) OutputPorts() []component.Port {
	return []component.Port{{
		Name:        "accepted",
		Direction:   component.DirectionOutput,
		Required:    true,
		Description: "Accepted telemetry events",
		Config:      component.BusPort{Topic: bus.TopicTelemetryAccepted},
	}}
}

// Health returns current health status.
func (p *Processor) Health() component.HealthStatus {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	lastError, _ := p.lastError.Load().(string)
	status := component.HealthStatus{
		Healthy:    started,
		LastCheck:  time.Now(),
		ErrorCount: int(p.errorCount.Load()),
		LastError:  lastError,
	}
	if !p.startTime.IsZero() {
		status.Uptime = time.Since(p.startTime)
	}
	return status
}

// DataFlow returns current data flow metrics.
func (p *Processor) DataFlow() component.FlowMetrics {
	flow := component.FlowMetrics{}
	if last, ok := p.lastActivity.Load().(time.Time); ok {
		flow.LastActivity = last
	}
	processed := p.samplesProcessed.Load()
	if processed > 0 && !p.startTime.IsZero() {
		elapsed := time.Since(p.startTime).Seconds()
		if elapsed > 0 {
			flow.MessagesPerSecond = float64(processed) / elapsed
		}
		flow.ErrorRate = float64(p.errorCount.Load()) / float64(processed)
	}
	return flow
}
