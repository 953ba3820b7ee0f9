// Package bus implements the in-process event bus connecting the telemetry
// processor to the realtime publishers.
//
// The bus is an explicit value wired once at startup — there is no
// process-wide singleton, so tests construct isolated instances. Subscriber
// channels are bounded; a slow subscriber loses its oldest undelivered
// events rather than stalling the publish path for everyone else.
package bus

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/seanttaylor/parcely-sub000/metric"
	"github.com/seanttaylor/parcely-sub000/pkg/timestamp"
)

// TopicTelemetryAccepted carries AcceptedTelemetryEvent payloads from the
// processor to the realtime publishers.
const TopicTelemetryAccepted = "telemetry.accepted"

// EventTelemetryAccepted is the event name stamped on accepted telemetry
// envelopes and echoed in realtime frames.
const EventTelemetryAccepted = "TELEMETRY_ACCEPTED"

// DefaultSubscriberBuffer bounds each subscriber channel.
const DefaultSubscriberBuffer = 64

// Header identifies one published event.
type Header struct {
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	ID        string `json:"id"`
}

// Event is the envelope published on the bus and serialized verbatim into
// realtime frames.
type Event struct {
	Header  Header `json:"header"`
	Payload any    `json:"payload"`
}

// NewEvent stamps an envelope with a fresh id and the current time.
func NewEvent(name string, payload any) Event {
	return Event{
		Header: Header{
			Timestamp: timestamp.Now(),
			Name:      name,
			ID:        uuid.NewString(),
		},
		Payload: payload,
	}
}

// Config holds bus configuration.
type Config struct {
	// SubscriberBuffer is the per-subscriber channel capacity.
	SubscriberBuffer int `json:"subscriberBuffer"`
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{SubscriberBuffer: DefaultSubscriberBuffer}
}

// ConstructorConfig holds dependencies for creating a Bus.
type ConstructorConfig struct {
	Config   Config
	Logger   *slog.Logger
	Registry *metric.MetricsRegistry // optional
}

// Subscription is one subscriber's bounded event channel.
type Subscription struct {
	topic string
	ch    chan Event
	bus   *Bus
	once  sync.Once
}

// C returns the subscriber's receive channel. It is closed on Unsubscribe
// and on bus Close.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Topic returns the topic this subscription listens on.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s)
}

// Bus is a topic-based publish/subscribe channel.
type Bus struct {
	mu      sync.RWMutex
	topics  map[string][]*Subscription
	bufSize int
	closed  bool
	logger  *slog.Logger
	core    *metric.Metrics
}

// New creates an event bus.
func New(cfg ConstructorConfig) *Bus {
	bufSize := cfg.Config.SubscriberBuffer
	if bufSize <= 0 {
		bufSize = DefaultSubscriberBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bus{
		topics:  make(map[string][]*Subscription),
		bufSize: bufSize,
		logger:  logger.With("component", "event-bus"),
	}
	if cfg.Registry != nil {
		b.core = cfg.Registry.CoreMetrics()
	}
	return b
}

// Subscribe registers a new subscriber on the topic.
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, b.bufSize),
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.topics[topic] = append(b.topics[topic], sub)
	return sub
}

// Publish delivers the event to every current subscriber of the topic.
// Delivery is non-blocking: when a subscriber's channel is full, its oldest
// undelivered event is discarded to make room. Returns the number of
// subscribers the event was delivered to.
func (b *Bus) Publish(topic string, event Event) int {
	// hold the read lock across the sends: delivery is non-blocking, and
	// the lock keeps Close/Unsubscribe from closing a channel mid-send
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	subs := b.topics[topic]

	delivered := 0
	for _, sub := range subs {
		select {
		case sub.ch <- event:
			delivered++
		default:
			// full channel: shed the oldest event, then retry once
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
				delivered++
			default:
			}
			b.logger.Warn("slow subscriber, oldest event dropped", "topic", topic)
		}
	}

	if b.core != nil {
		b.core.RecordEventPublished("event-bus", topic)
	}
	return delivered
}

// SubscriberCount returns the number of active subscribers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close shuts down the bus, closing every subscriber channel. Publishing
// after Close delivers nothing.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, subs := range b.topics {
		for _, sub := range subs {
			sub.once.Do(func() { close(sub.ch) })
		}
	}
	b.topics = make(map[string][]*Subscription)
}

func (b *Bus) unsubscribe(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[target.topic]
	for i, sub := range subs {
		if sub == target {
			b.topics[target.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	target.once.Do(func() { close(target.ch) })
}
