package metrics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/vmroute/metrics"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()
	registered := time.Now()

	require.NoError(t, store.Init(ctx, "gpt", registered))

	m, err := store.Get(ctx, "gpt")
	require.NoError(t, err)
	assert.Equal(t, "gpt", m.TargetID)
	assert.Zero(t, m.TotalRequests)
	assert.Equal(t, registered, m.RegisteredAt)
	assert.True(t, m.LastUsed.IsZero())

	require.NoError(t, store.Remove(ctx, "gpt"))
	_, err = store.Get(ctx, "gpt")
	assert.ErrorIs(t, err, metrics.ErrMetricsNotFound)
}

func TestMemoryStore_RecordRequestIsProvisionalSuccess(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()
	require.NoError(t, store.Init(ctx, "gpt", time.Now()))

	used := time.Now()
	require.NoError(t, store.RecordRequest(ctx, "gpt", used))

	m, err := store.Get(ctx, "gpt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.TotalRequests)
	assert.EqualValues(t, 1, m.SuccessfulRequests)
	assert.EqualValues(t, 0, m.FailedRequests)
	assert.Equal(t, used, m.LastUsed)
}

func TestMemoryStore_RecordOutcomeReclassifiesFailure(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()
	require.NoError(t, store.Init(ctx, "gpt", time.Now()))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordRequest(ctx, "gpt", time.Now()))
	}
	require.NoError(t, store.RecordOutcome(ctx, "gpt", false))
	require.NoError(t, store.RecordOutcome(ctx, "gpt", true))

	m, err := store.Get(ctx, "gpt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, m.TotalRequests, "outcome never changes the total")
	assert.EqualValues(t, 2, m.SuccessfulRequests)
	assert.EqualValues(t, 1, m.FailedRequests)
	assert.InDelta(t, 1.0/3.0, m.ErrorRate(), 1e-9)
}

func TestMemoryStore_SuccessNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()
	require.NoError(t, store.Init(ctx, "gpt", time.Now()))

	require.NoError(t, store.RecordOutcome(ctx, "gpt", false))
	require.NoError(t, store.RecordOutcome(ctx, "gpt", false))

	m, err := store.Get(ctx, "gpt")
	require.NoError(t, err)
	assert.EqualValues(t, 0, m.SuccessfulRequests)
	assert.EqualValues(t, 2, m.FailedRequests)
}

func TestMemoryStore_UnknownTarget(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()

	assert.ErrorIs(t, store.RecordRequest(ctx, "ghost", time.Now()), metrics.ErrMetricsNotFound)
	assert.ErrorIs(t, store.RecordOutcome(ctx, "ghost", false), metrics.ErrMetricsNotFound)
	assert.ErrorIs(t, store.RecordOutcome(ctx, "ghost", true), metrics.ErrMetricsNotFound,
		"successful outcomes for unknown targets are errors too")
	_, err := store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, metrics.ErrMetricsNotFound)
	assert.NoError(t, store.Remove(ctx, "ghost"), "removing an absent entry is a no-op")
}

func TestMemoryStore_InitResetsCounters(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()

	require.NoError(t, store.Init(ctx, "gpt", time.Now()))
	require.NoError(t, store.RecordRequest(ctx, "gpt", time.Now()))

	require.NoError(t, store.Init(ctx, "gpt", time.Now()))
	m, err := store.Get(ctx, "gpt")
	require.NoError(t, err)
	assert.Zero(t, m.TotalRequests, "re-registration starts from zero")
}

func TestMemoryStore_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	store := metrics.NewMemoryStore()
	require.NoError(t, store.Init(ctx, "a", time.Now()))
	require.NoError(t, store.Init(ctx, "b", time.Now()))
	require.NoError(t, store.RecordRequest(ctx, "a", time.Now()))

	snapshot, err := store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.EqualValues(t, 1, snapshot["a"].TotalRequests)

	// Mutating after the snapshot must not be visible in it.
	require.NoError(t, store.RecordRequest(ctx, "a", time.Now()))
	assert.EqualValues(t, 1, snapshot["a"].TotalRequests)
}

func TestTracker_DefaultsToMemoryStore(t *testing.T) {
	ctx := context.Background()
	tracker := metrics.NewTracker(nil, nil)

	require.NoError(t, tracker.Init(ctx, "gpt"))
	tracker.RecordRequest(ctx, "gpt")
	tracker.RecordRequest(ctx, "unknown") // logged, not fatal

	m, err := tracker.Get(ctx, "gpt")
	require.NoError(t, err)
	assert.EqualValues(t, 1, m.TotalRequests)
	assert.False(t, m.RegisteredAt.IsZero())

	snapshot := tracker.Snapshot(ctx)
	require.Len(t, snapshot, 1)
	assert.EqualValues(t, 1, snapshot["gpt"].TotalRequests)
}
