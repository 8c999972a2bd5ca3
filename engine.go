package vmroute

import (
	"context"
	"errors"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/modelmux/vmroute/features"
	"github.com/modelmux/vmroute/health"
	"github.com/modelmux/vmroute/internal/observability"
	"github.com/modelmux/vmroute/internal/promexport"
	"github.com/modelmux/vmroute/metrics"
	"github.com/modelmux/vmroute/pkg/routing"
	"github.com/modelmux/vmroute/registry"
	"github.com/modelmux/vmroute/scoring"
)

// Engine is the public entry point: explicit-target short-circuit, then
// feature analysis, candidate scoring, selection with fallback, and a
// metrics update. Data flows one way per request; registration mutates
// the registry independently.
type Engine struct {
	cfg      routing.Config
	logger   *observability.Logger
	registry *registry.Registry
	tracker  *metrics.Tracker
	analyzer *features.Analyzer
	scorer   *scoring.Scorer
	selector *scoring.Selector
	monitor  *health.Monitor

	// featureCache memoizes Analyze results per request id so Route and
	// RouteDetailed share one analysis. Nil when disabled.
	featureCache *gocache.Cache
}

// New creates a routing engine with the given options.
func New(opts ...Option) *Engine {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	logger := observability.Wrap(options.logger)
	tracker := metrics.NewTracker(options.store, logger)
	reg := registry.New(tracker, logger)

	e := &Engine{
		cfg:      options.cfg,
		logger:   logger.WithComponent("engine"),
		registry: reg,
		tracker:  tracker,
		analyzer: features.New(options.cfg),
		scorer:   scoring.NewScorer(options.cfg),
		selector: scoring.NewSelector(),
		monitor:  health.NewMonitor(options.cfg, reg, tracker, logger),
	}
	if options.cfg.FeatureCacheTTL > 0 {
		e.featureCache = gocache.New(options.cfg.FeatureCacheTTL, 2*options.cfg.FeatureCacheTTL)
	}
	return e
}

// Register adds a virtual model target.
func (e *Engine) Register(target routing.Target) error {
	if err := e.registry.Register(target); err != nil {
		return err
	}
	promexport.RegisteredTargets.Set(float64(e.registry.Len()))
	return nil
}

// Unregister removes a target, its rules, and its metrics.
func (e *Engine) Unregister(id string) error {
	if err := e.registry.Unregister(id); err != nil {
		return err
	}
	promexport.RegisteredTargets.Set(float64(e.registry.Len()))
	return nil
}

// UpdateRoutingRules replaces a target's rule set. Any invalid rule
// rejects the whole call.
func (e *Engine) UpdateRoutingRules(id string, rules []routing.Rule) error {
	return e.registry.UpdateRules(id, rules)
}

// SetTargetEnabled flips a target's enablement flag, e.g. to re-enable
// a target after an auto-disabling health sweep.
func (e *Engine) SetTargetEnabled(id string, enabled bool) error {
	return e.registry.SetEnabled(id, enabled)
}

// ListTargets returns all registered targets in registration order.
func (e *Engine) ListTargets() []routing.Target {
	return e.registry.List()
}

// ListEnabledTargets returns all enabled targets in registration order.
func (e *Engine) ListEnabledTargets() []routing.Target {
	return e.registry.ListEnabled()
}

// GetMetrics returns the metrics for one target.
func (e *Engine) GetMetrics(id string) (routing.ModelMetrics, error) {
	m, err := e.tracker.Get(context.Background(), id)
	if errors.Is(err, metrics.ErrMetricsNotFound) {
		return routing.ModelMetrics{}, routing.NewTargetNotFoundError(id)
	}
	return m, err
}

// RecordOutcome reports the downstream result of a previously routed
// request. Routing success was already counted; a failed outcome
// reclassifies it.
func (e *Engine) RecordOutcome(id string, success bool) error {
	err := e.tracker.RecordOutcome(context.Background(), id, success)
	if errors.Is(err, metrics.ErrMetricsNotFound) {
		return routing.NewTargetNotFoundError(id)
	}
	return err
}

// RunHealthSweep classifies every target once. Advisory unless
// auto-disable is configured; callable on a timer by an external
// scheduler.
func (e *Engine) RunHealthSweep() []routing.HealthReport {
	return e.monitor.Sweep(context.Background())
}

// Route selects a target for the request. This is the only call on the
// request hot path.
func (e *Engine) Route(req *routing.ClientRequest) (routing.Target, error) {
	selection, err := e.RouteDetailed(req)
	if err != nil {
		return routing.Target{}, err
	}
	return selection.Target, nil
}

// RouteDetailed is Route with the full selection: confidence, reason, and
// ranked alternatives for audit and telemetry.
func (e *Engine) RouteDetailed(req *routing.ClientRequest) (*routing.Selection, error) {
	if req == nil {
		promexport.RoutingErrors.WithLabelValues("nil_request").Inc()
		return nil, routing.NewInvalidTargetError("nil request")
	}
	if req.ID == "" {
		req.ID = observability.GenerateRequestID()
	}
	ctx := observability.ContextWithRequestID(context.Background(), req.ID)
	logger := e.logger.WithRequestID(ctx)

	// Explicit-target requests are strict: no scoring, no fallback.
	if req.ExplicitTargetID != "" {
		return e.routeExplicit(ctx, logger, req)
	}

	enabled := e.registry.ListEnabled()
	if len(enabled) == 0 {
		promexport.RoutingErrors.WithLabelValues("no_enabled_targets").Inc()
		return nil, routing.ErrNoEnabledTargets
	}

	feat := e.analyzeFeatures(req)
	snapshot := e.tracker.Snapshot(ctx)
	candidates := e.scorer.Score(feat, enabled, snapshot)

	selection, err := e.selector.Select(candidates, snapshot)
	if err != nil {
		// Last-resort fallback: first enabled target, registration order.
		selection = &routing.Selection{
			Target:   enabled[0],
			Reason:   "fallback: first enabled target",
			Fallback: true,
		}
		logger.Warn("scoring produced no candidates, using fallback",
			"target_id", selection.Target.ID,
		)
	}

	e.finishSelection(ctx, logger, req, selection)
	return selection, nil
}

func (e *Engine) routeExplicit(ctx context.Context, logger *observability.Logger, req *routing.ClientRequest) (*routing.Selection, error) {
	target, ok := e.registry.Get(req.ExplicitTargetID)
	if !ok {
		promexport.RoutingErrors.WithLabelValues("explicit_not_found").Inc()
		return nil, routing.NewTargetNotFoundError(req.ExplicitTargetID)
	}
	if !target.IsEnabled() {
		promexport.RoutingErrors.WithLabelValues("explicit_disabled").Inc()
		return nil, routing.NewTargetDisabledError(req.ExplicitTargetID)
	}

	selection := &routing.Selection{
		Target:     target,
		Confidence: 1,
		Reason:     "explicit target",
	}
	e.finishSelection(ctx, logger, req, selection)
	return selection, nil
}

// finishSelection records metrics and emits the audit log on every
// successful return path.
func (e *Engine) finishSelection(ctx context.Context, logger *observability.Logger, req *routing.ClientRequest, selection *routing.Selection) {
	if rule, ok := registry.MatchRule(selection.Target.RoutingRules, req); ok {
		selection.Reason = fmt.Sprintf("%s; rule %q matched", selection.Reason, rule.Name)
	}

	e.tracker.RecordRequest(ctx, selection.Target.ID)
	promexport.RoutedRequests.WithLabelValues(
		selection.Target.ID, boolLabel(selection.Fallback)).Inc()
	promexport.SelectionConfidence.Observe(selection.Confidence)

	logger.Info("request routed",
		"target_id", selection.Target.ID,
		"confidence", selection.Confidence,
		"fallback", selection.Fallback,
		"reason", selection.Reason,
	)
}

func (e *Engine) analyzeFeatures(req *routing.ClientRequest) routing.RequestFeatures {
	if e.featureCache != nil {
		if cached, ok := e.featureCache.Get(req.ID); ok {
			if feat, ok := cached.(routing.RequestFeatures); ok {
				return feat
			}
		}
	}
	feat := e.analyzer.Analyze(req)
	if e.featureCache != nil {
		e.featureCache.SetDefault(req.ID, feat)
	}
	return feat
}

// Close releases the metrics store.
func (e *Engine) Close() error {
	return e.tracker.Close()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
