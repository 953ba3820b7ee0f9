package natsclient

import (
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/seanttaylor/parcely-sub000/metric"
)

// ClientOption configures a Client during construction
type ClientOption func(*Client) error

// WithLogger sets the structured logger for the client
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		if logger == nil {
			return stderrors.New("logger cannot be nil")
		}
		c.logger = logger
		return nil
	}
}

// WithClientName sets the connection name reported to the server
func WithClientName(name string) ClientOption {
	return func(c *Client) error {
		c.clientName = name
		return nil
	}
}

// WithTimeout sets the connection timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		if timeout <= 0 {
			return stderrors.New("timeout must be positive")
		}
		c.timeout = timeout
		return nil
	}
}

// WithReconnectWait sets the wait duration between reconnection attempts
func WithReconnectWait(wait time.Duration) ClientOption {
	return func(c *Client) error {
		if wait <= 0 {
			return stderrors.New("reconnect wait must be positive")
		}
		c.reconnectWait = wait
		return nil
	}
}

// WithMaxReconnects sets the maximum number of reconnection attempts.
// Negative means reconnect forever.
func WithMaxReconnects(max int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = max
		return nil
	}
}

// WithDrainTimeout sets the drain timeout used on Close
func WithDrainTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		if timeout <= 0 {
			return stderrors.New("drain timeout must be positive")
		}
		c.drainTimeout = timeout
		return nil
	}
}

// WithMetrics wires the platform NATS gauges to connection state changes
func WithMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(c *Client) error {
		if registry != nil {
			c.core = registry.CoreMetrics()
		}
		return nil
	}
}
