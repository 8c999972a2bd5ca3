package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelmux/vmroute/pkg/routing"
)

const defaultKeyPrefix = "vmroute:metrics"

// RedisStore implements Store on Redis hashes so multiple gateway
// instances share one view of per-target counters. Counter updates use
// HINCRBY, which is atomic per field; the engine's linearization
// requirement for same-target updates holds without scripting.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	scanCount int64
}

// RedisStoreOption configures RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default: "vmroute:metrics").
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(r *RedisStore) {
		r.keyPrefix = prefix
	}
}

// WithScanCount sets the SCAN batch size used by Snapshot (default: 100).
func WithScanCount(count int64) RedisStoreOption {
	return func(r *RedisStore) {
		r.scanCount = count
	}
}

// NewRedisStore creates a Redis-backed metrics store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	store := &RedisStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		scanCount: 100,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (r *RedisStore) key(targetID string) string {
	return r.keyPrefix + ":" + targetID
}

// Init creates a zeroed entry for the target.
func (r *RedisStore) Init(ctx context.Context, targetID string, registeredAt time.Time) error {
	key := r.key(targetID)
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key,
		"target_id", targetID,
		"total", 0,
		"success", 0,
		"failed", 0,
		"last_used", 0,
		"registered_at", registeredAt.UnixNano(),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("init metrics for %s: %w", targetID, err)
	}
	return nil
}

// Remove deletes the entry for the target.
func (r *RedisStore) Remove(ctx context.Context, targetID string) error {
	if err := r.client.Del(ctx, r.key(targetID)).Err(); err != nil {
		return fmt.Errorf("remove metrics for %s: %w", targetID, err)
	}
	return nil
}

// RecordRequest counts one routed request as a provisional success.
func (r *RedisStore) RecordRequest(ctx context.Context, targetID string, at time.Time) error {
	key := r.key(targetID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record request for %s: %w", targetID, err)
	}
	if exists == 0 {
		return ErrMetricsNotFound
	}

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "total", 1)
	pipe.HIncrBy(ctx, key, "success", 1)
	pipe.HSet(ctx, key, "last_used", at.UnixNano())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record request for %s: %w", targetID, err)
	}
	return nil
}

// RecordOutcome reclassifies one provisional success as a failure when
// the downstream call did not succeed.
func (r *RedisStore) RecordOutcome(ctx context.Context, targetID string, success bool) error {
	key := r.key(targetID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record outcome for %s: %w", targetID, err)
	}
	if exists == 0 {
		return ErrMetricsNotFound
	}
	if success {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, key, "failed", 1)
	succ := pipe.HIncrBy(ctx, key, "success", -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record outcome for %s: %w", targetID, err)
	}
	// Concurrent reclassifications can briefly push success below zero;
	// clamp back so derived ratios stay sane.
	if succ.Val() < 0 {
		if err := r.client.HSet(ctx, key, "success", 0).Err(); err != nil {
			return fmt.Errorf("record outcome for %s: %w", targetID, err)
		}
	}
	return nil
}

// Get returns a copy of the target's metrics.
func (r *RedisStore) Get(ctx context.Context, targetID string) (routing.ModelMetrics, error) {
	fields, err := r.client.HGetAll(ctx, r.key(targetID)).Result()
	if err != nil {
		return routing.ModelMetrics{}, fmt.Errorf("get metrics for %s: %w", targetID, err)
	}
	if len(fields) == 0 {
		return routing.ModelMetrics{}, ErrMetricsNotFound
	}
	return parseMetricsHash(targetID, fields), nil
}

// Snapshot scans all entries under the key prefix.
func (r *RedisStore) Snapshot(ctx context.Context) (map[string]routing.ModelMetrics, error) {
	snapshot := make(map[string]routing.ModelMetrics)
	match := r.keyPrefix + ":*"

	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, r.scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("snapshot metrics: %w", err)
		}
		for _, key := range keys {
			fields, err := r.client.HGetAll(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("snapshot metrics: %w", err)
			}
			if len(fields) == 0 {
				continue
			}
			id := fields["target_id"]
			if id == "" {
				id = key[len(r.keyPrefix)+1:]
			}
			snapshot[id] = parseMetricsHash(id, fields)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return snapshot, nil
}

// Close is a no-op; the Redis client is owned by the caller.
func (r *RedisStore) Close() error {
	return nil
}

func parseMetricsHash(targetID string, fields map[string]string) routing.ModelMetrics {
	m := routing.ModelMetrics{TargetID: targetID}
	m.TotalRequests = parseInt64(fields["total"])
	m.SuccessfulRequests = parseInt64(fields["success"])
	m.FailedRequests = parseInt64(fields["failed"])
	if m.SuccessfulRequests < 0 {
		m.SuccessfulRequests = 0
	}
	if ns := parseInt64(fields["last_used"]); ns > 0 {
		m.LastUsed = time.Unix(0, ns)
	}
	if ns := parseInt64(fields["registered_at"]); ns > 0 {
		m.RegisteredAt = time.Unix(0, ns)
	}
	return m
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
