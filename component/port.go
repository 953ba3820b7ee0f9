package component

import (
	"fmt"
)

// Direction for data flow
type Direction string

// Direction constants for port data flow
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes any I/O interface
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      Portable  `json:"config"`
}

// Portable interface - minimal, no Get prefix
type Portable interface {
	ResourceID() string // Unique identifier for conflict detection
	IsExclusive() bool  // Whether multiple components can share
	Type() string       // Port type identifier
}

// NetworkPort describes a listening network endpoint (HTTP, WebSocket)
type NetworkPort struct {
	Protocol string `json:"protocol"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Path     string `json:"path,omitempty"`
}

// ResourceID returns the unique identifier for this network endpoint
func (n NetworkPort) ResourceID() string {
	return fmt.Sprintf("%s://%s:%d%s", n.Protocol, n.Host, n.Port, n.Path)
}

// IsExclusive returns true; only one component may bind a network port
func (n NetworkPort) IsExclusive() bool { return true }

// Type returns the port type identifier
func (n NetworkPort) Type() string { return "network" }

// BusPort describes an in-process event bus topic
type BusPort struct {
	Topic string `json:"topic"`
}

// ResourceID returns the unique identifier for this bus topic
func (b BusPort) ResourceID() string { return "bus:" + b.Topic }

// IsExclusive returns false; many components may share a topic
func (b BusPort) IsExclusive() bool { return false }

// Type returns the port type identifier
func (b BusPort) Type() string { return "bus" }

// NATSPort describes a NATS subject subscription
type NATSPort struct {
	Subject string `json:"subject"`
}

// ResourceID returns the unique identifier for this subject
func (n NATSPort) ResourceID() string { return "nats:" + n.Subject }

// IsExclusive returns false; NATS subjects fan out to many subscribers
func (n NATSPort) IsExclusive() bool { return false }

// Type returns the port type identifier
func (n NATSPort) Type() string { return "nats" }

// QueuePort describes the in-process ingestion queue
type QueuePort struct {
	Name string `json:"name"`
}

// ResourceID returns the unique identifier for this queue
func (q QueuePort) ResourceID() string { return "queue:" + q.Name }

// IsExclusive returns false; many producers share the queue
func (q QueuePort) IsExclusive() bool { return false }

// Type returns the port type identifier
func (q QueuePort) Type() string { return "queue" }
