// Package registry owns the set of registered virtual model targets.
// It is the only component that mutates target state; everything else
// works from snapshots it hands out.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/modelmux/vmroute/internal/observability"
	"github.com/modelmux/vmroute/metrics"
	"github.com/modelmux/vmroute/pkg/routing"
)

// Tuning field bounds. Out-of-range values are clamped with a logged
// correction rather than a hard failure.
const (
	defaultMaxTokens   = 4096
	maxMaxTokens       = 200000
	defaultTemperature = 0.7
	defaultTopP        = 1.0
)

// Registry is a mutex-guarded, insertion-ordered collection of targets.
// Iteration order is registration order; equal-score candidates downstream
// tie-break on it, so the order is part of the contract.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	targets map[string]*routing.Target

	tracker *metrics.Tracker
	logger  *observability.Logger
}

// New creates an empty registry. The tracker receives Init/Remove calls
// as targets come and go; nil gets a memory-backed tracker.
func New(tracker *metrics.Tracker, logger *observability.Logger) *Registry {
	if tracker == nil {
		tracker = metrics.NewTracker(nil, logger)
	}
	if logger == nil {
		logger = observability.Wrap(nil)
	}
	return &Registry{
		targets: make(map[string]*routing.Target),
		tracker: tracker,
		logger:  logger.WithComponent("registry"),
	}
}

// Register validates the target, fills defaults, derives capability and
// endpoint fields from its first backend, and stores it along with a
// zeroed metrics entry. Registering an existing id is an error, never an
// overwrite.
func (r *Registry) Register(target routing.Target) error {
	if strings.TrimSpace(target.ID) == "" {
		return routing.NewInvalidTargetError("id is required")
	}
	if strings.TrimSpace(target.Name) == "" {
		return routing.NewInvalidTargetError("name is required")
	}
	if strings.TrimSpace(target.Provider) == "" {
		return routing.NewInvalidTargetError("provider is required")
	}
	if err := validateRules(target.RoutingRules); err != nil {
		return err
	}

	stored := target.Clone()
	r.applyDefaults(&stored)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.targets[stored.ID]; exists {
		return routing.NewDuplicateTargetError(stored.ID)
	}

	if err := r.tracker.Init(context.Background(), stored.ID); err != nil {
		return err
	}
	r.targets[stored.ID] = &stored
	r.order = append(r.order, stored.ID)

	r.logger.Info("target registered",
		"target_id", stored.ID,
		"provider", stored.Provider,
		"model", stored.Model,
		"capabilities", strings.Join(stored.Capabilities, ","),
	)
	return nil
}

// applyDefaults normalizes optional fields and derives capabilities,
// endpoint, and model from the first backend when they were not set
// explicitly. Backends are processed exactly once, here.
func (r *Registry) applyDefaults(t *routing.Target) {
	if t.Enabled == nil {
		t.Enabled = routing.Bool(true)
	}

	if len(t.Backends) > 0 {
		backend := t.Backends[0]
		if t.Model == "" {
			t.Model = backend.Model
		}
		if t.Endpoint == "" {
			t.Endpoint = providerEndpoint(backend.Provider)
		}
		if len(t.Capabilities) == 0 {
			t.Capabilities = deriveCapabilities(backend)
		}
	}
	if len(t.Capabilities) == 0 {
		t.Capabilities = []string{routing.CapChat}
	}
	t.Capabilities = dedupe(t.Capabilities)

	if t.MaxTokens <= 0 {
		r.logCorrection(t.ID, "max_tokens", t.MaxTokens, defaultMaxTokens)
		t.MaxTokens = defaultMaxTokens
	} else if t.MaxTokens > maxMaxTokens {
		r.logCorrection(t.ID, "max_tokens", t.MaxTokens, maxMaxTokens)
		t.MaxTokens = maxMaxTokens
	}
	if t.Temperature < 0 || t.Temperature > 2 {
		r.logCorrection(t.ID, "temperature", t.Temperature, defaultTemperature)
		t.Temperature = defaultTemperature
	}
	if t.TopP <= 0 || t.TopP > 1 {
		r.logCorrection(t.ID, "top_p", t.TopP, defaultTopP)
		t.TopP = defaultTopP
	}
}

func (r *Registry) logCorrection(targetID, field string, got, used any) {
	r.logger.Warn("tuning field out of range, corrected",
		"target_id", targetID,
		"field", field,
		"got", got,
		"used", used,
	)
}

// Unregister removes the target, its rules, and its metrics in one
// critical section. Unregistering an absent id is a no-op error.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.targets[id]; !exists {
		return routing.NewTargetNotFoundError(id)
	}

	delete(r.targets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if err := r.tracker.Remove(context.Background(), id); err != nil {
		r.logger.Warn("metrics removal failed", "target_id", id, "error", err)
	}

	r.logger.Info("target unregistered", "target_id", id)
	return nil
}

// Get returns a copy of the target.
func (r *Registry) Get(id string) (routing.Target, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target, ok := r.targets[id]
	if !ok {
		return routing.Target{}, false
	}
	return target.Clone(), true
}

// List returns copies of all targets in registration order.
func (r *Registry) List() []routing.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]routing.Target, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.targets[id].Clone())
	}
	return out
}

// ListEnabled returns copies of all enabled targets in registration
// order.
func (r *Registry) ListEnabled() []routing.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]routing.Target, 0, len(r.order))
	for _, id := range r.order {
		if t := r.targets[id]; t.IsEnabled() {
			out = append(out, t.Clone())
		}
	}
	return out
}

// UpdateRules validates every rule before replacing the target's rule
// set. A single invalid rule fails the whole call with nothing applied.
func (r *Registry) UpdateRules(id string, rules []routing.Rule) error {
	if err := validateRules(rules); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[id]
	if !ok {
		return routing.NewTargetNotFoundError(id)
	}
	target.RoutingRules = append([]routing.Rule(nil), rules...)

	r.logger.Info("routing rules updated", "target_id", id, "rules", len(rules))
	return nil
}

// SetEnabled flips the enablement flag. Used by health sweeps when
// auto-disable is configured.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.targets[id]
	if !ok {
		return routing.NewTargetNotFoundError(id)
	}
	target.Enabled = routing.Bool(enabled)
	return nil
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
