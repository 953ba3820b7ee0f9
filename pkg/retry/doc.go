// Package retry provides exponential backoff retry logic with jitter.
//
// The package is used by connection-oriented components (the NATS telemetry
// ingress) to re-establish resources during startup and after transient
// failures. Telemetry samples themselves are never retried: the processor's
// drop policy lives at a higher level, and callers mark such failures with
// NonRetryable to stop the loop immediately.
//
// Basic usage:
//
//	err := retry.Do(ctx, retry.Persistent(), func() error {
//	    return client.Connect(ctx)
//	})
//
// Use Quick() for fast startup loops and Persistent() for critical
// long-running resources.
package retry
