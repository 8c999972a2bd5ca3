// Package metrics tracks per-target routing counters. A Tracker fronts a
// pluggable Store so single-instance gateways use local memory while
// multi-instance deployments share counters through Redis.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/modelmux/vmroute/pkg/routing"
)

// ErrMetricsNotFound is returned when no metrics entry exists for a
// target id.
var ErrMetricsNotFound = errors.New("metrics not found for target")

// ErrStoreNotAvailable is returned when the backing store cannot be
// reached.
var ErrStoreNotAvailable = errors.New("metrics store not available")

// Store is the persistence boundary for per-target counters.
//
// Counter semantics: RecordRequest counts a routing decision and
// provisionally marks it successful (routing succeeded; the downstream
// call has not happened yet). RecordOutcome(false) reclassifies one
// provisional success as a failure once the caller reports the
// downstream result. RecordOutcome(true) is a no-op kept for a symmetric
// caller contract.
type Store interface {
	// Init creates a zeroed entry for the target. Called on Register.
	Init(ctx context.Context, targetID string, registeredAt time.Time) error

	// Remove deletes the entry. Called on Unregister.
	Remove(ctx context.Context, targetID string) error

	// RecordRequest counts one routed request for the target.
	RecordRequest(ctx context.Context, targetID string, at time.Time) error

	// RecordOutcome reports the downstream result for one routed request.
	RecordOutcome(ctx context.Context, targetID string, success bool) error

	// Get returns a copy of the target's metrics, or ErrMetricsNotFound.
	Get(ctx context.Context, targetID string) (routing.ModelMetrics, error)

	// Snapshot returns a copy of every tracked entry keyed by target id.
	Snapshot(ctx context.Context) (map[string]routing.ModelMetrics, error)

	// Close releases any resources held by the store.
	Close() error
}
