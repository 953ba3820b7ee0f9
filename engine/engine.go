// Package engine assembles the telemetry pipeline and manages its
// lifecycle: queue, processor, event bus, realtime publishers and the
// optional wire ingest are built once, started in dependency order and
// stopped in reverse.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/config"
	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/health"
	"github.com/seanttaylor/parcely-sub000/input/natsingest"
	"github.com/seanttaylor/parcely-sub000/metric"
	"github.com/seanttaylor/parcely-sub000/natsclient"
	"github.com/seanttaylor/parcely-sub000/output/sse"
	"github.com/seanttaylor/parcely-sub000/output/websocket"
	"github.com/seanttaylor/parcely-sub000/processor/telemetry"
	"github.com/seanttaylor/parcely-sub000/queue"
	"github.com/seanttaylor/parcely-sub000/repository"
)

// ConstructorConfig holds dependencies for building an Engine.
type ConstructorConfig struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
	// Accounts resolves recipient emails; defaults to an empty static
	// resolver, which makes every recipient an email-only account.
	Accounts repository.AccountResolver
}

// Engine owns the pipeline. Publishers start before the processor so no
// accepted event is emitted without a listening transport, and the wire
// ingest starts last so samples cannot arrive before the consumer runs.
type Engine struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry

	bus       *bus.Bus
	queue     *queue.Queue
	crates    *repository.MemoryCrateRepository
	shipments *repository.MemoryShipmentRepository
	service   *repository.Service
	nats      *natsclient.Client

	monitor     *health.Monitor
	managed     []*component.ManagedComponent
	stopTimeout time.Duration

	mu      sync.Mutex
	running bool
}

// New builds the pipeline from configuration. Nothing is started.
func New(cfg ConstructorConfig) (*Engine, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	stopTimeout, err := cfg.Config.ShutdownTimeoutDuration()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	accounts := cfg.Accounts
	if accounts == nil {
		accounts = repository.NewStaticAccountResolver()
	}

	e := &Engine{
		cfg:         cfg.Config,
		logger:      logger.With("component", "engine"),
		registry:    cfg.Registry,
		monitor:     health.NewMonitor(),
		stopTimeout: stopTimeout,
	}

	e.bus = bus.New(bus.ConstructorConfig{
		Logger:   logger,
		Registry: cfg.Registry,
	})

	e.queue, err = queue.New(queue.ConstructorConfig{
		Config:   queue.Config{Capacity: cfg.Config.Queue.Capacity},
		Logger:   logger,
		Registry: cfg.Registry,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "New", "build queue")
	}

	e.crates = repository.NewMemoryCrateRepository()
	e.shipments = repository.NewMemoryShipmentRepository()
	e.service = repository.NewService(repository.ServiceConfig{
		Crates:    e.crates,
		Shipments: e.shipments,
		Accounts:  accounts,
		Logger:    logger,
	})

	if err := e.buildComponents(logger); err != nil {
		return nil, err
	}
	return e, nil
}

// buildComponents constructs the managed components in start order.
func (e *Engine) buildComponents(logger *slog.Logger) error {
	c := e.cfg

	if c.SSE.Enabled {
		out, err := sse.New(sse.ConstructorConfig{
			Config: sse.Config{
				Host: c.SSE.Host,
				Port: c.SSE.Port,
				Path: c.SSE.Path,
			},
			Bus:      e.bus,
			Logger:   logger,
			Registry: e.registry,
		})
		if err != nil {
			return errors.Wrap(err, "Engine", "buildComponents", "build sse output")
		}
		e.manage(out)
	}

	if c.WebSocket.Enabled {
		out, err := websocket.New(websocket.ConstructorConfig{
			Config: websocket.Config{
				Host: c.WebSocket.Host,
				Port: c.WebSocket.Port,
				Path: c.WebSocket.Path,
			},
			Bus:      e.bus,
			Logger:   logger,
			Registry: e.registry,
		})
		if err != nil {
			return errors.Wrap(err, "Engine", "buildComponents", "build websocket output")
		}
		e.manage(out)
	}

	proc, err := telemetry.New(telemetry.ConstructorConfig{
		Config:   telemetry.Config{BatchSize: c.Processor.BatchSize},
		Queue:    e.queue,
		Service:  e.service,
		Bus:      e.bus,
		Logger:   logger,
		Registry: e.registry,
	})
	if err != nil {
		return errors.Wrap(err, "Engine", "buildComponents", "build processor")
	}
	e.manage(proc)

	if c.NATS.Enabled {
		client, err := natsclient.NewClient(c.NATS.URL,
			natsclient.WithLogger(logger),
			natsclient.WithClientName("parcely"),
			natsclient.WithMetrics(e.registry),
		)
		if err != nil {
			return errors.Wrap(err, "Engine", "buildComponents", "build nats client")
		}
		e.nats = client

		in, err := natsingest.New(natsingest.ConstructorConfig{
			Config:   natsingest.Config{Subject: c.NATS.Subject},
			Queue:    e.queue,
			Client:   client,
			Logger:   logger,
			Registry: e.registry,
		})
		if err != nil {
			return errors.Wrap(err, "Engine", "buildComponents", "build nats ingest")
		}
		e.manage(in)
	}

	return nil
}

func (e *Engine) manage(comp component.Discoverable) {
	e.managed = append(e.managed, &component.ManagedComponent{
		Component:  comp,
		State:      component.StateCreated,
		StartOrder: len(e.managed),
	})
}

// Run starts the pipeline and blocks until ctx is cancelled, then shuts
// everything down in reverse start order.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Engine", "Run", "run")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if err := e.startAll(ctx); err != nil {
		e.stopAll()
		return err
	}

	e.logger.Info("pipeline running", "components", len(e.managed))
	<-ctx.Done()

	e.logger.Info("shutdown signal received")
	e.stopAll()
	return nil
}

func (e *Engine) startAll(ctx context.Context) error {
	for _, mc := range e.managed {
		name := mc.Component.Meta().Name
		lc, ok := component.AsLifecycleComponent(mc.Component)
		if !ok {
			return errors.WrapFatal(
				fmt.Errorf("component %s does not implement lifecycle", name),
				"Engine", "startAll", "lifecycle check")
		}

		if err := lc.Initialize(); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			e.monitor.UpdateUnhealthy(name, err.Error())
			return errors.Wrap(err, "Engine", "startAll", "initialize "+name)
		}
		mc.State = component.StateInitialized

		mc.Context, mc.Cancel = context.WithCancel(ctx)
		if err := lc.Start(mc.Context); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			mc.Cancel()
			e.monitor.UpdateUnhealthy(name, err.Error())
			return errors.Wrap(err, "Engine", "startAll", "start "+name)
		}
		mc.State = component.StateStarted
		e.monitor.UpdateHealthy(name, "started")
		e.logger.Info("component started", "name", name, "order", mc.StartOrder)
	}
	return nil
}

// stopAll stops started components in reverse start order. Every component
// gets a stop attempt even when an earlier one fails.
func (e *Engine) stopAll() {
	for i := len(e.managed) - 1; i >= 0; i-- {
		mc := e.managed[i]
		if mc.State != component.StateStarted {
			continue
		}
		name := mc.Component.Meta().Name
		lc, _ := component.AsLifecycleComponent(mc.Component)

		if err := lc.Stop(e.stopTimeout); err != nil {
			mc.State = component.StateFailed
			mc.LastError = err
			e.monitor.UpdateUnhealthy(name, err.Error())
			e.logger.Error("component stop failed", "name", name, "error", err)
			continue
		}
		if mc.Cancel != nil {
			mc.Cancel()
		}
		mc.State = component.StateStopped
		e.monitor.UpdateHealthy(name, "stopped")
		e.logger.Info("component stopped", "name", name)
	}

	if e.nats != nil {
		closeCtx, cancel := context.WithTimeout(context.Background(), e.stopTimeout)
		defer cancel()
		if err := e.nats.Close(closeCtx); err != nil {
			e.logger.Warn("nats client close failed", "error", err)
		}
	}
	e.bus.Close()
	if err := e.queue.Close(); err != nil {
		e.logger.Warn("queue close failed", "error", err)
	}
}

// Service exposes the crate/shipment service for callers embedding the
// pipeline (tests, future transport layers).
func (e *Engine) Service() *repository.Service {
	return e.service
}

// Bus exposes the event bus.
func (e *Engine) Bus() *bus.Bus {
	return e.bus
}

// Queue exposes the ingestion queue.
func (e *Engine) Queue() *queue.Queue {
	return e.queue
}

// Ingest feeds one telemetry sample into the pipeline, bypassing the wire.
func (e *Engine) Ingest(sample crate.Sample) error {
	_, err := e.queue.Enqueue(sample)
	return err
}

// Health polls every managed component and returns the aggregated status.
func (e *Engine) Health() health.Status {
	for _, mc := range e.managed {
		name := mc.Component.Meta().Name
		e.monitor.Update(name, health.FromComponentHealth(name, mc.Component.Health()))
	}
	return e.monitor.AggregateHealth("parcely")
}

// Components returns the managed component states in start order.
func (e *Engine) Components() []*component.ManagedComponent {
	out := make([]*component.ManagedComponent, len(e.managed))
	copy(out, e.managed)
	return out
}
