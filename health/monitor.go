package health

import (
	"sync"
	"time"
)

// Monitor is the pipeline's registry of per-component health. Components
// report through the Update methods; the engine reads the roll-up back
// through AggregateHealth. Safe for concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor returns an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records the status reported for a component. The registration name
// wins over whatever Component the caller filled in, and a zero timestamp
// is stamped with the current time.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()
}

// UpdateHealthy records name as healthy.
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy records name as unhealthy.
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded records name as degraded.
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// Get returns the last status reported for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[name]
	return status, ok
}

// Statuses returns a snapshot of every reported status, keyed by
// component name.
func (m *Monitor) Statuses() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		snapshot[name] = status
	}
	return snapshot
}

// AggregateHealth folds every reported status into one system-level status
// via Aggregate: any unhealthy component makes the system unhealthy, any
// degraded one degrades it.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	sub := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		sub = append(sub, status)
	}
	m.mu.RUnlock()

	return Aggregate(systemName, sub)
}
