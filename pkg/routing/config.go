package routing

import "time"

// Config contains the tunables for feature analysis, scoring, and health
// classification. Zero values are replaced by DefaultConfig values where
// a component would otherwise divide by zero or never match.
type Config struct {
	// --- Feature analysis thresholds (bytes of serialized payload) ---

	// ComplexMinBytes is the payload size above which a request is
	// classified complex.
	ComplexMinBytes int

	// MediumMinBytes is the payload size above which a request is
	// classified medium.
	MediumMinBytes int

	// LongContextMinBytes is the payload size above which the
	// long-context capability is required.
	LongContextMinBytes int

	// --- Scoring weights (additive, no cross-target normalization) ---

	// CapabilityWeight scales the capability match ratio.
	CapabilityWeight float64

	// LongContextBonus applies when the payload exceeds
	// LongContextMinBytes and the target has long-context.
	LongContextBonus float64

	// ComplexityBonus applies to thinking targets on complex requests.
	ComplexityBonus float64

	// PriorityBonus applies to high-performance targets on high-priority
	// requests.
	PriorityBonus float64

	// HealthWeight scales the (1 - errorRate) * 100 health contribution.
	HealthWeight float64

	// PreferredBonus applies when a preferred-model directive names the
	// target.
	PreferredBonus float64

	// --- Health classification ---

	// UnhealthyErrorRate is the advisory threshold above which a sweep
	// reports a target unhealthy.
	UnhealthyErrorRate float64

	// AutoDisableOnHighErrorRate makes health sweeps flip Enabled off for
	// targets past AutoDisableErrorRate with at least
	// AutoDisableMinRequests recorded. Off by default: sweeps are
	// advisory only.
	AutoDisableOnHighErrorRate bool

	AutoDisableErrorRate   float64
	AutoDisableMinRequests int64

	// --- Feature cache ---

	// FeatureCacheTTL bounds how long an analyzed RequestFeatures value
	// is memoized per request id. Zero disables the cache.
	FeatureCacheTTL time.Duration
}

// DefaultConfig returns the standard thresholds and scoring weights.
func DefaultConfig() Config {
	return Config{
		ComplexMinBytes:     8000,
		MediumMinBytes:      2000,
		LongContextMinBytes: 4000,

		CapabilityWeight: 40,
		LongContextBonus: 30,
		ComplexityBonus:  20,
		PriorityBonus:    10,
		HealthWeight:     0.1,
		PreferredBonus:   25,

		UnhealthyErrorRate:         0.1,
		AutoDisableOnHighErrorRate: false,
		AutoDisableErrorRate:       0.5,
		AutoDisableMinRequests:     10,

		FeatureCacheTTL: 30 * time.Second,
	}
}
