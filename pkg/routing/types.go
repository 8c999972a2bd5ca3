// Package routing defines the shared types for the virtual model routing
// engine: registrable targets, per-request features, scored candidates,
// selection results, and per-target metrics. It also defines the typed
// errors the engine returns and the Dispatcher integration point.
package routing

import (
	"time"

	"github.com/goccy/go-json"
)

// Well-known capability tags. Targets may carry arbitrary capability
// strings; these are the ones the feature analyzer and capability
// derivation emit.
const (
	CapChat            = "chat"
	CapStreaming       = "streaming"
	CapTools           = "tools"
	CapLongContext     = "long-context"
	CapThinking        = "thinking"
	CapCoding          = "coding"
	CapVision          = "vision"
	CapMultilingual    = "multilingual"
	CapHighPerformance = "high-performance"
)

// BackendRef names a provider/model pair behind a virtual model. Backends
// are consulted once at registration time to derive capabilities, the
// endpoint, and the model field when those are not set explicitly; they
// are never dialed by this engine.
type BackendRef struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
}

// Target is a registrable virtual model: a provider/model pair plus the
// capability set and routing rules used to decide whether a request
// should land on it.
type Target struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Provider     string   `json:"provider" yaml:"provider"`
	Model        string   `json:"model,omitempty" yaml:"model,omitempty"`
	Endpoint     string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`

	// Enabled defaults to true when nil. The registry normalizes it on
	// Register so stored targets always carry an explicit value.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Tuning fields are validated and clamped at registration but never
	// consulted by routing decisions.
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`

	RoutingRules []Rule       `json:"routing_rules,omitempty" yaml:"routing_rules,omitempty"`
	Backends     []BackendRef `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// IsEnabled reports whether the target is routable. A nil Enabled pointer
// means the flag was never set and defaults to true.
func (t Target) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Clone returns a deep copy so registry snapshots cannot be mutated by
// callers.
func (t Target) Clone() Target {
	cp := t
	if t.Enabled != nil {
		v := *t.Enabled
		cp.Enabled = &v
	}
	cp.Capabilities = append([]string(nil), t.Capabilities...)
	cp.RoutingRules = append([]Rule(nil), t.RoutingRules...)
	cp.Backends = append([]BackendRef(nil), t.Backends...)
	return cp
}

// Bool returns a pointer to b, for building Target literals.
func Bool(b bool) *bool { return &b }

// Rule is an advisory per-target eligibility predicate. Conditions use a
// small prefix DSL: "path:<fragment>", "method:<verb>", or
// "header:<name>=<value>". Rules are evaluated in descending priority
// order and the first match marks the target eligible; they never remove
// a target from consideration.
type Rule struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	Condition string  `json:"condition" yaml:"condition"`
	Weight    float64 `json:"weight" yaml:"weight"`     // [0,1]
	Priority  int     `json:"priority" yaml:"priority"` // [1,10]
	Enabled   *bool   `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the rule participates in matching.
func (r Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ClientRequest is the engine's view of an incoming API call, produced by
// an external HTTP layer. The engine never reads sockets; it consumes
// this value and returns a Target.
type ClientRequest struct {
	ID               string            `json:"id,omitempty"`
	Method           string            `json:"method"`
	Path             string            `json:"path"`
	Headers          map[string]string `json:"headers,omitempty"`
	Query            map[string]string `json:"query,omitempty"`
	Body             any               `json:"body,omitempty"`
	ExplicitTargetID string            `json:"explicit_target_id,omitempty"`
}

// Complexity buckets a request by serialized payload size.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Priority is the request's urgency tier, taken from an explicit header
// or an "urgent" path token.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DirectiveKind discriminates special routing directives carried in
// request headers.
type DirectiveKind string

const (
	DirectivePreferModel   DirectiveKind = "preferred-model"
	DirectiveExcludeModels DirectiveKind = "exclude-models"
)

// Directive is a parsed special-routing token, e.g. "preferred-model:gpt".
type Directive struct {
	Kind     DirectiveKind
	TargetID string
}

// String renders the directive in its wire token form.
func (d Directive) String() string {
	return string(d.Kind) + ":" + d.TargetID
}

// RequestFeatures is the ephemeral, derived description of one request
// that scoring operates on. It is computed once per request and never
// stored.
type RequestFeatures struct {
	Capabilities  []string
	ContentLength int
	Complexity    Complexity
	Priority      Priority
	Directives    []Directive
}

// Preferred reports whether a preferred-model directive names id.
func (f RequestFeatures) Preferred(id string) bool {
	for _, d := range f.Directives {
		if d.Kind == DirectivePreferModel && d.TargetID == id {
			return true
		}
	}
	return false
}

// Excluded reports whether an exclude-models directive names id.
func (f RequestFeatures) Excluded(id string) bool {
	for _, d := range f.Directives {
		if d.Kind == DirectiveExcludeModels && d.TargetID == id {
			return true
		}
	}
	return false
}

// ScoredCandidate pairs a target with its additive score and the reasons
// that contributed to it. CapabilityRatio keeps the raw capability match
// fraction so the selector can derive confidence without re-scoring.
type ScoredCandidate struct {
	Target          Target
	Score           float64
	CapabilityRatio float64
	Reasons         []string
}

// Selection is the full result of one routing decision. Confidence is a
// secondary observability metric, independent of the ranking score.
type Selection struct {
	Target       Target
	Confidence   float64
	Reason       string
	Alternatives []Target

	// Fallback is set when normal scoring produced no usable candidate
	// and the engine degraded to the first enabled target.
	Fallback bool
}

// ModelMetrics is the per-target counter set. Lifecycle is tied to
// registration: created zeroed on Register, destroyed on Unregister.
type ModelMetrics struct {
	TargetID           string    `json:"target_id"`
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	LastUsed           time.Time `json:"last_used"`
	RegisteredAt       time.Time `json:"registered_at"`
}

// ErrorRate returns failed/total, or 0 for a target with no requests.
func (m ModelMetrics) ErrorRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.FailedRequests) / float64(m.TotalRequests)
}

// SuccessRatio returns successful/max(total, 1). A target that has never
// been used reports 1 so it is not penalized before its first request.
func (m ModelMetrics) SuccessRatio() float64 {
	if m.TotalRequests == 0 {
		return 1
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests)
}

// Throughput returns requests per second since registration.
func (m ModelMetrics) Throughput(now time.Time) float64 {
	if m.RegisteredAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(m.RegisteredAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(m.TotalRequests) / elapsed
}

// HealthReport is the advisory classification produced by a health sweep.
type HealthReport struct {
	TargetID      string  `json:"target_id"`
	Healthy       bool    `json:"healthy"`
	ErrorRate     float64 `json:"error_rate"`
	TotalRequests int64   `json:"total_requests"`

	// Disabled is set when the sweep auto-disabled the target (only with
	// Config.AutoDisableOnHighErrorRate).
	Disabled bool `json:"disabled,omitempty"`
}

// Response is an opaque downstream payload. The engine never produces
// one; it exists only so Dispatcher has a concrete signature.
type Response = json.RawMessage

// Dispatcher is the strategy interface for the downstream call the engine
// deliberately does not make. The engine selects a Target; the embedding
// gateway's dispatcher executes it.
type Dispatcher interface {
	Execute(target Target, req *ClientRequest) (Response, error)
}
