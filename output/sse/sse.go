// Package sse implements the realtime publisher: a server-push text stream
// broadcasting accepted telemetry events to every connected subscriber.
//
// Wire contract: on connect the server immediately writes the literal line
// CONNECTION_OK and flushes, so clients can distinguish "connected, no data
// yet" from "never connected". Each subsequent event is a two-part frame:
//
//	event: <eventName>
//	data: <json envelope>
//
// where the JSON body is the bus Event envelope
// {header:{timestamp,name,id},payload:...}.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/metric"
)

const componentName = "sse-output"

// greeting is the connectivity-confirmation line written before any event.
const greeting = "CONNECTION_OK\n"

// Config holds SSE output configuration.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
	// WriteTimeout bounds each frame write; a subscriber that cannot keep
	// up within it is dropped rather than stalling the broadcast.
	WriteTimeout time.Duration `json:"writeTimeout"`
	// SendBuffer is the per-subscriber frame buffer.
	SendBuffer int `json:"sendBuffer"`
}

// DefaultConfig returns the default SSE configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8081,
		Path:         "/realtime",
		WriteTimeout: 5 * time.Second,
		SendBuffer:   32,
	}
}

// ConstructorConfig holds dependencies for creating the SSE output.
type ConstructorConfig struct {
	Config   Config
	Bus      *bus.Bus
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
}

// Connection is one subscriber's registration. The handle is used only for
// cleanup; frames flow through the send channel to the connection's own
// writer loop.
type Connection struct {
	ID   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.done) })
}

// Output is the SSE realtime publisher component.
type Output struct {
	config  Config
	bus     *bus.Bus
	logger  *slog.Logger
	metrics *Metrics

	server   *http.Server
	listener net.Listener

	mu          sync.RWMutex
	connections map[string]*Connection
	stopping    bool

	sub     *bus.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stateMu sync.Mutex

	startTime       time.Time
	eventsBroadcast int64
	broadcastMu     sync.Mutex
	lastActivity    time.Time
}

// New creates the SSE output component.
func New(cfg ConstructorConfig) (*Output, error) {
	if cfg.Bus == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "SSE", "New", "bus dependency")
	}

	config := cfg.Config
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultConfig().SendBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "SSE", "New", "metrics registration")
	}

	return &Output{
		config:      config,
		bus:         cfg.Bus,
		logger:      logger.With("component", componentName),
		metrics:     metrics,
		connections: make(map[string]*Connection),
	}, nil
}

// Initialize sets up the HTTP server.
func (o *Output) Initialize() error {
	mux := http.NewServeMux()
	mux.HandleFunc(o.config.Path, o.handleSubscribe)

	o.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", o.config.Host, o.config.Port),
		Handler: mux,
	}
	o.startTime = time.Now()
	return nil
}

// Start begins serving subscribers and broadcasting bus events.
func (o *Output) Start(ctx context.Context) error {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if o.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "SSE", "Start", "start")
	}
	if o.server == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "SSE", "Start", "initialize first")
	}

	listener, err := net.Listen("tcp", o.server.Addr)
	if err != nil {
		return errors.WrapTransient(err, "SSE", "Start", "bind listener")
	}
	o.listener = listener
	o.mu.Lock()
	o.stopping = false
	o.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.sub = o.bus.Subscribe(bus.TopicTelemetryAccepted)
	o.started = true

	o.wg.Add(1)
	go o.consume(runCtx)

	go func() {
		if err := o.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			o.logger.Error("sse server failed", "error", err)
		}
	}()

	o.logger.Info("sse output started", "addr", listener.Addr().String(), "path", o.config.Path)
	return nil
}

// Stop shuts down the server and deregisters every subscriber.
func (o *Output) Stop(timeout time.Duration) error {
	o.stateMu.Lock()
	if !o.started {
		o.stateMu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "SSE", "Stop", "stop")
	}
	o.started = false
	cancel := o.cancel
	o.stateMu.Unlock()

	o.sub.Unsubscribe()
	cancel()

	// Close subscriber connections before Shutdown: a server-push stream
	// never goes idle on its own, so Shutdown would otherwise wait out the
	// whole timeout for handlers that only return once done is closed.
	o.mu.Lock()
	o.stopping = true
	for id, conn := range o.connections {
		conn.close()
		delete(o.connections, id)
	}
	o.mu.Unlock()
	o.metrics.setConnected(0)

	ctx, ctxCancel := context.WithTimeout(context.Background(), timeout)
	defer ctxCancel()
	err := o.server.Shutdown(ctx)

	o.wg.Wait()
	o.logger.Info("sse output stopped")
	if err != nil {
		return errors.WrapTransient(err, "SSE", "Stop", "server shutdown")
	}
	return nil
}

// consume forwards bus events to all subscribers.
func (o *Output) consume(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-o.sub.C():
			if !ok {
				return
			}
			o.broadcast(event)
		}
	}
}

// Publish serializes an event envelope into a frame and writes it to every
// current subscriber. Per-subscriber failures (full buffer, broken pipe)
// remove that subscriber without affecting others and without raising to
// the caller.
func (o *Output) Publish(eventName string, payload any) {
	o.broadcast(bus.NewEvent(eventName, payload))
}

func (o *Output) broadcast(event bus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		o.logger.Error("event serialization failed", "event", event.Header.Name, "error", err)
		return
	}
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Header.Name, data))

	o.mu.RLock()
	conns := make([]*Connection, 0, len(o.connections))
	for _, conn := range o.connections {
		conns = append(conns, conn)
	}
	o.mu.RUnlock()

	for _, conn := range conns {
		select {
		case conn.send <- frame:
		default:
			// subscriber can't keep up; cut it loose
			o.logger.Warn("dropping slow subscriber", "connectionId", conn.ID)
			o.metrics.recordDropped()
			o.deregister(conn)
		}
	}

	o.broadcastMu.Lock()
	o.eventsBroadcast++
	o.lastActivity = time.Now()
	o.broadcastMu.Unlock()
	o.metrics.recordBroadcast()
}

// handleSubscribe registers a subscriber and streams frames until the
// client disconnects.
func (o *Output) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// greeting before any domain event
	if _, err := fmt.Fprint(w, greeting); err != nil {
		return
	}
	flusher.Flush()

	conn := o.register()
	defer o.deregister(conn)

	rc := http.NewResponseController(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case <-conn.done:
			return
		case frame := <-conn.send:
			_ = rc.SetWriteDeadline(time.Now().Add(o.config.WriteTimeout))
			if _, err := w.Write(frame); err != nil {
				o.logger.Debug("subscriber write failed", "connectionId", conn.ID, "error", err)
				o.metrics.recordDropped()
				return
			}
			flusher.Flush()
		}
	}
}

// register adds a new subscriber connection.
func (o *Output) register() *Connection {
	conn := &Connection{
		ID:   uuid.NewString(),
		send: make(chan []byte, o.config.SendBuffer),
		done: make(chan struct{}),
	}

	o.mu.Lock()
	if o.stopping {
		// shutting down; hand back a closed connection so the handler
		// returns immediately instead of stalling Shutdown
		o.mu.Unlock()
		conn.close()
		return conn
	}
	o.connections[conn.ID] = conn
	count := len(o.connections)
	o.mu.Unlock()

	o.metrics.setConnected(count)
	o.logger.Info("subscriber connected", "connectionId", conn.ID, "total", count)
	return conn
}

// deregister removes a subscriber; no further writes are attempted once
// removed. Safe to call more than once for the same connection.
func (o *Output) deregister(conn *Connection) {
	o.mu.Lock()
	_, present := o.connections[conn.ID]
	delete(o.connections, conn.ID)
	count := len(o.connections)
	o.mu.Unlock()

	conn.close()
	if present {
		o.metrics.setConnected(count)
		o.logger.Info("subscriber disconnected", "connectionId", conn.ID, "total", count)
	}
}

// Address returns the bound listen address, resolving an ephemeral port
// once the output has started.
func (o *Output) Address() string {
	if o.listener != nil {
		return o.listener.Addr().String()
	}
	if o.server != nil {
		return o.server.Addr
	}
	return fmt.Sprintf("%s:%d", o.config.Host, o.config.Port)
}

// SubscriberCount returns the number of open subscriber connections.
func (o *Output) SubscriberCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.connections)
}

// Handler exposes the subscribe handler for tests and embedding.
func (o *Output) Handler() http.HandlerFunc {
	return o.handleSubscribe
}

// Meta returns component metadata.
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "output",
		Description: "Broadcasts accepted telemetry events over a server-push text stream",
		Version:     "1.0.0",
	}
}

// InputPorts returns the output's input ports.
func (o *Output) InputPorts() []component.Port {
	return []component.Port{{
		Name:        "events",
		Direction:   component.DirectionInput,
		Required:    true,
		Description: "Accepted telemetry events",
		Config:      component.BusPort{Topic: bus.TopicTelemetryAccepted},
	}}
}

// OutputPorts returns the output's network ports.
func (o *Output) OutputPorts() []component.Port {
	return []component.Port{{
		Name:        "stream",
		Direction:   component.DirectionOutput,
		Required:    true,
		Description: "Server-push event stream",
		Config: component.NetworkPort{
			Protocol: "http",
			Host:     o.config.Host,
			Port:     o.config.Port,
			Path:     o.config.Path,
		},
	}}
}

// Health returns current health status.
func (o *Output) Health() component.HealthStatus {
	o.stateMu.Lock()
	started := o.started
	o.stateMu.Unlock()

	status := component.HealthStatus{
		Healthy:   started,
		LastCheck: time.Now(),
	}
	if !o.startTime.IsZero() {
		status.Uptime = time.Since(o.startTime)
	}
	return status
}

// DataFlow returns current data flow metrics.
func (o *Output) DataFlow() component.FlowMetrics {
	o.broadcastMu.Lock()
	defer o.broadcastMu.Unlock()

	flow := component.FlowMetrics{LastActivity: o.lastActivity}
	if o.eventsBroadcast > 0 && !o.startTime.IsZero() {
		elapsed := time.Since(o.startTime).Seconds()
		if elapsed > 0 {
			flow.MessagesPerSecond = float64(o.eventsBroadcast) / elapsed
		}
	}
	return flow
}
