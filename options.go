package vmroute

import (
	"log/slog"
	"time"

	"github.com/modelmux/vmroute/metrics"
	"github.com/modelmux/vmroute/pkg/routing"
)

type engineOptions struct {
	cfg    routing.Config
	logger *slog.Logger
	store  metrics.Store
}

func defaultOptions() engineOptions {
	return engineOptions{
		cfg: routing.DefaultConfig(),
	}
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithConfig replaces the whole routing configuration. Zero-valued
// thresholds and weights still fall back to defaults inside each
// component.
func WithConfig(cfg routing.Config) Option {
	return func(o *engineOptions) {
		o.cfg = cfg
	}
}

// WithLogger injects the logger used by all engine components. Defaults
// to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMetricsStore replaces the in-memory metrics store, e.g. with a
// Redis-backed one for multi-instance deployments.
func WithMetricsStore(store metrics.Store) Option {
	return func(o *engineOptions) {
		o.store = store
	}
}

// WithAutoDisable turns on health-sweep auto-disable of targets whose
// error rate stays above the configured threshold.
func WithAutoDisable(enabled bool) Option {
	return func(o *engineOptions) {
		o.cfg.AutoDisableOnHighErrorRate = enabled
	}
}

// WithFeatureCacheTTL bounds per-request feature memoization. Zero
// disables the cache.
func WithFeatureCacheTTL(ttl time.Duration) Option {
	return func(o *engineOptions) {
		o.cfg.FeatureCacheTTL = ttl
	}
}
