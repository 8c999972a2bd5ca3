package metrics

import (
	"context"
	"time"

	"github.com/modelmux/vmroute/internal/observability"
	"github.com/modelmux/vmroute/pkg/routing"
)

// Tracker owns the per-target metrics lifecycle. The registry calls Init
// and Remove on register/unregister; the engine calls RecordRequest after
// every routing decision and RecordOutcome when the caller reports the
// downstream result. Scorers only ever see a Snapshot, never live state.
type Tracker struct {
	store  Store
	logger *observability.Logger
}

// NewTracker creates a tracker backed by store. A nil store gets a fresh
// MemoryStore.
func NewTracker(store Store, logger *observability.Logger) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = observability.Wrap(nil)
	}
	return &Tracker{
		store:  store,
		logger: logger.WithComponent("metrics"),
	}
}

// Init creates a zeroed entry for a newly registered target.
func (t *Tracker) Init(ctx context.Context, targetID string) error {
	return t.store.Init(ctx, targetID, time.Now())
}

// Remove deletes the entry for an unregistered target.
func (t *Tracker) Remove(ctx context.Context, targetID string) error {
	return t.store.Remove(ctx, targetID)
}

// RecordRequest counts one routed request. Failures to persist are
// logged, not propagated: a metrics write must never fail a route that
// already succeeded.
func (t *Tracker) RecordRequest(ctx context.Context, targetID string) {
	if err := t.store.RecordRequest(ctx, targetID, time.Now()); err != nil {
		t.logger.Warn("record request failed",
			"target_id", targetID,
			"error", err,
		)
	}
}

// RecordOutcome reports the downstream result for a routed request.
func (t *Tracker) RecordOutcome(ctx context.Context, targetID string, success bool) error {
	return t.store.RecordOutcome(ctx, targetID, success)
}

// Get returns the metrics for one target.
func (t *Tracker) Get(ctx context.Context, targetID string) (routing.ModelMetrics, error) {
	return t.store.Get(ctx, targetID)
}

// Snapshot returns a stable copy of all tracked metrics for scoring.
// On store failure it returns an empty map so routing can proceed with
// neutral health scores.
func (t *Tracker) Snapshot(ctx context.Context) map[string]routing.ModelMetrics {
	snapshot, err := t.store.Snapshot(ctx)
	if err != nil {
		t.logger.Warn("metrics snapshot failed", "error", err)
		return map[string]routing.ModelMetrics{}
	}
	return snapshot
}

// Close releases the backing store.
func (t *Tracker) Close() error {
	return t.store.Close()
}
