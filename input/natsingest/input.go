// Package natsingest implements the telemetry ingestion input: raw sensor
// payloads arriving on a NATS subject are decoded and appended to the
// ingestion queue. Malformed payloads are counted and dropped; the wire is
// not a trusted source.
package natsingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/crate"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/metric"
	"github.com/seanttaylor/parcely-sub000/natsclient"
	"github.com/seanttaylor/parcely-sub000/pkg/retry"
	"github.com/seanttaylor/parcely-sub000/queue"
)

const componentName = "nats-ingest"

// DefaultSubject is the wire subject raw telemetry arrives on.
const DefaultSubject = "parcely.telemetry.raw"

// Config holds ingest input configuration.
type Config struct {
	Subject string `json:"subject"`
}

// DefaultConfig returns the default ingest configuration.
func DefaultConfig() Config {
	return Config{Subject: DefaultSubject}
}

// ConstructorConfig holds dependencies for creating the ingest input.
type ConstructorConfig struct {
	Config   Config
	Queue    *queue.Queue
	Client   *natsclient.Client // nil skips the wire subscription (tests)
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
}

// Input decodes raw telemetry from the wire into the ingestion queue.
type Input struct {
	config  Config
	queue   *queue.Queue
	client  *natsclient.Client
	logger  *slog.Logger
	metrics *Metrics

	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex

	startTime    time.Time
	received     atomic.Int64
	malformed    atomic.Int64
	lastError    atomic.Value // string
	lastActivity atomic.Value // time.Time
}

// New creates the NATS ingest input.
func New(cfg ConstructorConfig) (*Input, error) {
	if cfg.Queue == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Input", "New", "queue dependency")
	}

	config := cfg.Config
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "Input", "New", "metrics registration")
	}

	return &Input{
		config:  config,
		queue:   cfg.Queue,
		client:  cfg.Client,
		logger:  logger.With("component", componentName),
		metrics: metrics,
	}, nil
}

// Initialize prepares the input for starting.
func (in *Input) Initialize() error {
	in.startTime = time.Now()
	return nil
}

// Start connects to the wire and subscribes to the telemetry subject. With
// no client configured the input starts idle; samples can still be fed
// through Ingest directly.
func (in *Input) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Input", "Start", "start")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if in.client != nil {
		if !in.client.IsHealthy() {
			err := retry.Do(runCtx, retry.Quick(), func() error {
				return in.client.Connect(runCtx)
			})
			if err != nil {
				cancel()
				return errors.Wrap(err, "Input", "Start", "connect to nats")
			}
		}

		if err := in.client.Subscribe(runCtx, in.config.Subject, in.Ingest); err != nil {
			cancel()
			return errors.Wrap(err, "Input", "Start", "subscribe to "+in.config.Subject)
		}
	}

	in.cancel = cancel
	in.started = true
	in.logger.Info("nats ingest started", "subject", in.config.Subject)
	return nil
}

// Stop halts ingestion. The NATS client itself is shared and closed by its
// owner, not here.
func (in *Input) Stop(_ time.Duration) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if !in.started {
		return errors.WrapInvalid(errors.ErrNotStarted, "Input", "Stop", "stop")
	}
	in.started = false
	in.cancel()

	in.logger.Info("nats ingest stopped")
	return nil
}

// Ingest decodes one raw payload and appends it to the ingestion queue.
// This is the NATS message handler; it is exported so embedding callers can
// feed samples from other transports through the same validation.
func (in *Input) Ingest(_ context.Context, data []byte) {
	in.received.Add(1)
	in.lastActivity.Store(time.Now())
	in.metrics.recordReceived()

	var sample crate.Sample
	if err := json.Unmarshal(data, &sample); err != nil {
		in.malformed.Add(1)
		in.lastError.Store(err.Error())
		in.metrics.recordMalformed()
		in.logger.Warn("malformed telemetry payload dropped", "error", err)
		return
	}
	if sample.CrateID == "" {
		in.malformed.Add(1)
		in.metrics.recordMalformed()
		in.logger.Warn("telemetry payload dropped, missing crate id")
		return
	}

	if _, err := in.queue.Enqueue(sample); err != nil {
		in.metrics.recordRejected()
		in.lastError.Store(err.Error())
		in.logger.Warn("sample rejected by ingestion queue", "crateId", sample.CrateID, "error", err)
	}
}

// Meta returns component metadata.
func (in *Input) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "input",
		Description: "Decodes raw telemetry from the wire into the ingestion queue",
		Version:     "1.0.0",
	}
}

// InputPorts returns the input's wire ports.
func (in *Input) InputPorts() []component.Port {
	return []component.Port{{
		Name:        "raw",
		Direction:   component.DirectionInput,
		Required:    true,
		Description: "Raw telemetry payloads",
		Config:      component.NATSPort{Subject: in.config.Subject},
	}}
}

// OutputPorts returns the input's queue ports.
func (in *Input) OutputPorts() []component.Port {
	return []component.Port{{
		Name:        "samples",
		Direction:   component.DirectionOutput,
		Required:    true,
		Description: "Decoded telemetry samples",
		Config:      component.QueuePort{Name: "ingestion-queue"},
	}}
}

// Health returns current health status.
func (in *Input) Health() component.HealthStatus {
	in.mu.Lock()
	started := in.started
	in.mu.Unlock()

	healthy := started
	if started && in.client != nil {
		healthy = in.client.IsHealthy()
	}

	lastError, _ := in.lastError.Load().(string)
	status := component.HealthStatus{
		Healthy:    healthy,
		LastCheck:  time.Now(),
		ErrorCount: int(in.malformed.Load()),
		LastError:  lastError,
	}
	if !in.startTime.IsZero() {
		status.Uptime = time.Since(in.startTime)
	}
	return status
}

// DataFlow returns current data flow metrics.
func (in *Input) DataFlow() component.FlowMetrics {
	flow := component.FlowMetrics{}
	if last, ok := in.lastActivity.Load().(time.Time); ok {
		flow.LastActivity = last
	}
	received := in.received.Load()
	if received > 0 && !in.startTime.IsZero() {
		elapsed := time.Since(in.startTime).Seconds()
		if elapsed > 0 {
			flow.MessagesPerSecond = float64(received) / elapsed
		}
		flow.ErrorRate = float64(in.malformed.Load()) / float64(received)
	}
	return flow
}
