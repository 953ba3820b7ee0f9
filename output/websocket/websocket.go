// Package websocket implements the WebSocket transport of the realtime
// publisher. Every accepted telemetry event is fanned out to all connected
// clients as a single text frame carrying the bus Event envelope
// {header:{timestamp,name,id},payload:...}.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seanttaylor/parcely-sub000/bus"
	"github.com/seanttaylor/parcely-sub000/component"
	"github.com/seanttaylor/parcely-sub000/errors"
	"github.com/seanttaylor/parcely-sub000/metric"
)

const componentName = "websocket-output"

// Config holds WebSocket output configuration.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Path string `json:"path"`
	// WriteTimeout bounds each frame write; a client that cannot keep up
	// within it is dropped rather than stalling the broadcast.
	WriteTimeout time.Duration `json:"writeTimeout"`
	// PingInterval is the keepalive ping cadence.
	PingInterval time.Duration `json:"pingInterval"`
	// PongWait is how long a client may go silent before its reads fail.
	PongWait time.Duration `json:"pongWait"`
}

// DefaultConfig returns the default WebSocket configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8082,
		Path:         "/ws",
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
	}
}

// ConstructorConfig holds dependencies for creating the WebSocket output.
type ConstructorConfig struct {
	Config   Config
	Bus      *bus.Bus
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
}

// client is one connected WebSocket peer. The write mutex serializes frame
// writes; gorilla connections panic on concurrent writes.
type client struct {
	conn        *websocket.Conn
	connectedAt time.Time
	writeMu     sync.Mutex
	closeOnce   sync.Once
}

func (c *client) write(messageType int, data []byte, deadline time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(deadline))
	return c.conn.WriteMessage(messageType, data)
}

// Output is the WebSocket realtime publisher component.
type Output struct {
	config  Config
	bus     *bus.Bus
	logger  *slog.Logger
	metrics *Metrics

	server   *http.Server
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client

	sub     *bus.Subscription
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	stateMu sync.Mutex

	startTime    time.Time
	messagesSent int64
	bytesSent    int64
	flowMu       sync.Mutex
	lastActivity time.Time
}

// New creates the WebSocket output component.
func New(cfg ConstructorConfig) (*Output, error) {
	if cfg.Bus == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "WebSocket", "New", "bus dependency")
	}

	config := cfg.Config
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultConfig().PingInterval
	}
	if config.PongWait <= 0 {
		config.PongWait = DefaultConfig().PongWait
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newMetrics(cfg.Registry)
	if err != nil {
		return nil, errors.Wrap(err, "WebSocket", "New", "metrics registration")
	}

	return &Output{
		config:  config,
		bus:     cfg.Bus,
		logger:  logger.With("component", componentName),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*client),
	}, nil
}

// Initialize sets up the HTTP server.
func (o *Output) Initialize() error {
	mux := http.NewServeMux()
	mux.HandleFunc(o.config.Path, o.handleConnect)

	o.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", o.config.Host, o.config.Port),
		Handler: mux,
	}
	o.startTime = time.Now()
	return nil
}

// Start begins serving clients and broadcasting bus events.
func (o *Output) Start(ctx context.Context) error {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()

	if o.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "WebSocket", "Start", "start")
	}
	if o.server == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "WebSocket", "Start", "initialize first")
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.sub = o.bus.Subscribe(bus.TopicTelemetryAccepted)
	o.started = true

	o.wg.Add(2)
	go o.consume(runCtx)
	go o.maintain(runCtx)

	go func() {
		if err := o.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			o.logger.Error("websocket server failed", "error", err)
		}
	}()

	o.logger.Info("websocket output started", "addr", o.server.Addr, "path", o.config.Path)
	return nil
}

// Stop shuts down the server and closes every client connection.
func (o *Output) Stop(timeout time.Duration) error {
	o.stateMu.Lock()
	if !o.started {
		o.stateMu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "WebSocket", "Stop", "stop")
	}
	o.started = false
	cancel := o.cancel
	o.stateMu.Unlock()

	o.sub.Unsubscribe()
	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), timeout)
	defer ctxCancel()
	err := o.server.Shutdown(ctx)

	o.mu.Lock()
	for conn, cl := range o.clients {
		cl.closeOnce.Do(func() { _ = cl.conn.Close() })
		delete(o.clients, conn)
	}
	o.mu.Unlock()
	o.metrics.setConnected(0)

	o.wg.Wait()
	o.logger.Info("websocket output stopped")
	if err != nil {
		return errors.WrapTransient(err, "WebSocket", "Stop", "server shutdown")
	}
	return nil
}

// consume forwards bus events to all connected clients.
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

// maintain pings every client on a fixed cadence so dead peers are detected
// between broadcasts.
func (o *Output) maintain(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, cl := range o.snapshot() {
				if err := cl.write(websocket.PingMessage, nil, o.config.WriteTimeout); err != nil {
					o.removeClient(cl, "ping failed")
				}
			}
		}
	}
}

// Publish serializes an event envelope and writes it to every connected
// client. Per-client failures remove that client without affecting others
// and without raising to the caller.
func (o *Output) Publish(eventName string, payload any) {
	o.broadcast(bus.NewEvent(eventName, payload))
}

func (o *Output) broadcast(event bus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		o.logger.Error("event serialization failed", "event", event.Header.Name, "error", err)
		return
	}

	for _, cl := range o.snapshot() {
		if err := cl.write(websocket.TextMessage, data, o.config.WriteTimeout); err != nil {
			o.logger.Warn("dropping unresponsive client", "error", err)
			o.metrics.recordDropped()
			o.removeClient(cl, "write failed")
			continue
		}
		o.metrics.recordSent(len(data))
		o.flowMu.Lock()
		o.messagesSent++
		o.bytesSent += int64(len(data))
		o.lastActivity = time.Now()
		o.flowMu.Unlock()
	}
}

// handleConnect upgrades the HTTP request and registers the client.
func (o *Output) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := o.upgrader.Upgrade(w, r, nil)
	if err != nil {
		o.logger.Warn("connection upgrade failed", "error", err)
		return
	}

	cl := &client{conn: conn, connectedAt: time.Now()}

	o.mu.Lock()
	o.clients[conn] = cl
	count := len(o.clients)
	o.mu.Unlock()

	o.metrics.setConnected(count)
	o.logger.Info("client connected", "remote", conn.RemoteAddr().String(), "total", count)

	go o.readLoop(cl)
}

// readLoop drains inbound frames so close and pong control messages are
// processed. The output never acts on client data; clients are listen-only.
func (o *Output) readLoop(cl *client) {
	defer o.removeClient(cl, "connection closed")

	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(o.config.PongWait))
	})
	_ = cl.conn.SetReadDeadline(time.Now().Add(o.config.PongWait))

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (o *Output) snapshot() []*client {
	o.mu.RLock()
	defer o.mu.RUnlock()

	clients := make([]*client, 0, len(o.clients))
	for _, cl := range o.clients {
		clients = append(clients, cl)
	}
	return clients
}

// removeClient deregisters and closes a client. Safe to call more than once
// for the same client.
func (o *Output) removeClient(cl *client, reason string) {
	o.mu.Lock()
	_, present := o.clients[cl.conn]
	delete(o.clients, cl.conn)
	count := len(o.clients)
	o.mu.Unlock()

	cl.closeOnce.Do(func() { _ = cl.conn.Close() })
	if present {
		o.metrics.setConnected(count)
		o.logger.Info("client disconnected", "reason", reason, "total", count)
	}
}

// ClientCount returns the number of connected clients.
func (o *Output) ClientCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.clients)
}

// Handler exposes the connection handler for tests and embedding.
func (o *Output) Handler() http.HandlerFunc {
	return o.handleConnect
}

// Meta returns component metadata.
func (o *Output) Meta() component.Metadata {
	return component.Metadata{
		Name:        componentName,
		Type:        "output",
		Description: "Broadcasts accepted telemetry events to WebSocket clients",
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
		Name:        "endpoint",
		Direction:   component.DirectionOutput,
		Required:    true,
		Description: "WebSocket endpoint",
		Config: component.NetworkPort{
			Protocol: "websocket",
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
	o.flowMu.Lock()
	defer o.flowMu.Unlock()

	flow := component.FlowMetrics{LastActivity: o.lastActivity}
	if o.messagesSent > 0 && !o.startTime.IsZero() {
		elapsed := time.Since(o.startTime).Seconds()
		if elapsed > 0 {
			flow.MessagesPerSecond = float64(o.messagesSent) / elapsed
			flow.BytesPerSecond = float64(o.bytesSent) / elapsed
		}
	}
	return flow
}
