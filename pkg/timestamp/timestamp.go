// Package timestamp provides standardized ISO-8601 timestamp handling utilities.
//
// This package uses RFC3339 UTC strings as the canonical timestamp format.
// The crate/shipment aggregate records every mutation (creation, departure,
// waypoint append, arrival) as an ISO-8601 string generated at the moment of
// mutation, and the realtime wire format carries the same strings, so the
// string form is canonical rather than a display concern.
//
// Zero Value Semantics:
//   - An empty string means "not set" or "unknown"
//   - Functions handle empty values gracefully, returning appropriate defaults
//
// Usage Examples:
//
//	// Current time
//	now := timestamp.Now()
//
//	// Convert from time.Time
//	ts := timestamp.FromTime(t)
//
//	// Convert to time.Time
//	t, err := timestamp.ToTime(ts)
//
//	// Ordering
//	if timestamp.Before(a, b) { ... }
package timestamp

import (
	"fmt"
	"time"
)

// Layout is the canonical wire layout for timestamps.
const Layout = time.RFC3339Nano

// Clock returns the current timestamp. Components take a Clock so tests can
// pin time; NowFunc is the production implementation.
type Clock func() string

// Now returns the current UTC time as a canonical timestamp string.
func Now() string {
	return time.Now().UTC().Format(Layout)
}

// FromTime converts a time.Time to a canonical timestamp string.
// Returns empty string for the zero time.
func FromTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(Layout)
}

// ToTime converts a canonical timestamp string to time.Time.
// Returns the zero time and nil error for an empty string.
func ToTime(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		// Fall back to second precision, some producers truncate
		t, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
	}
	return t.UTC(), nil
}

// IsZero checks if a timestamp is unset.
func IsZero(ts string) bool {
	return ts == ""
}

// Valid reports whether ts is empty or a parseable RFC3339 timestamp.
func Valid(ts string) bool {
	_, err := ToTime(ts)
	return err == nil
}

// Before reports whether timestamp a is strictly earlier than b.
// Unset timestamps sort earlier than any set timestamp.
func Before(a, b string) bool {
	ta, errA := ToTime(a)
	tb, errB := ToTime(b)
	if errA != nil || errB != nil {
		return false
	}
	return ta.Before(tb)
}

// Since returns the duration elapsed since the given timestamp.
// Returns 0 for unset or unparseable timestamps.
func Since(ts string) time.Duration {
	t, err := ToTime(ts)
	if err != nil || t.IsZero() {
		return 0
	}
	return time.Since(t)
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is unset or unparseable.
func Between(start, end string) time.Duration {
	ts, errS := ToTime(start)
	te, errE := ToTime(end)
	if errS != nil || errE != nil || ts.IsZero() || te.IsZero() {
		return 0
	}
	return te.Sub(ts)
}
