package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/modelmux/vmroute/pkg/routing"
)

// MemoryStore is an in-memory implementation of Store backed by an
// RWMutex-guarded map.
//
// Characteristics:
//   - Fast: no network calls
//   - Local-only: counters are not shared across instances
//   - No persistence: counters are lost on restart
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*routing.ModelMetrics
}

// NewMemoryStore creates a new in-memory metrics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*routing.ModelMetrics),
	}
}

// Init creates a zeroed entry for the target.
func (m *MemoryStore) Init(ctx context.Context, targetID string, registeredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[targetID] = &routing.ModelMetrics{
		TargetID:     targetID,
		RegisteredAt: registeredAt,
	}
	return nil
}

// Remove deletes the entry for the target.
func (m *MemoryStore) Remove(ctx context.Context, targetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, targetID)
	return nil
}

// RecordRequest counts one routed request as a provisional success.
func (m *MemoryStore) RecordRequest(ctx context.Context, targetID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[targetID]
	if !ok {
		return ErrMetricsNotFound
	}
	entry.TotalRequests++
	entry.SuccessfulRequests++
	entry.LastUsed = at
	return nil
}

// RecordOutcome reclassifies one provisional success as a failure when
// the downstream call did not succeed.
func (m *MemoryStore) RecordOutcome(ctx context.Context, targetID string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[targetID]
	if !ok {
		return ErrMetricsNotFound
	}
	if success {
		return nil
	}
	entry.FailedRequests++
	if entry.SuccessfulRequests > 0 {
		entry.SuccessfulRequests--
	}
	return nil
}

// Get returns a copy of the target's metrics.
func (m *MemoryStore) Get(ctx context.Context, targetID string) (routing.ModelMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[targetID]
	if !ok {
		return routing.ModelMetrics{}, ErrMetricsNotFound
	}
	return *entry, nil
}

// Snapshot returns a copy of every tracked entry keyed by target id.
func (m *MemoryStore) Snapshot(ctx context.Context) (map[string]routing.ModelMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]routing.ModelMetrics, len(m.entries))
	for id, entry := range m.entries {
		snapshot[id] = *entry
	}
	return snapshot, nil
}

// Close clears all entries.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*routing.ModelMetrics)
	return nil
}
