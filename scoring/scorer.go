// Package scoring ranks enabled targets against derived request features
// and picks one. Scoring is deterministic given its inputs; all state it
// reads (registry listing, metrics) arrives as snapshots.
package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modelmux/vmroute/pkg/routing"
)

// Scorer computes weighted additive scores. Components are computed
// independently per target and summed; there is no normalization across
// targets.
type Scorer struct {
	cfg routing.Config
}

// NewScorer creates a scorer. Zero-valued weights fall back to defaults.
func NewScorer(cfg routing.Config) *Scorer {
	defaults := routing.DefaultConfig()
	if cfg.CapabilityWeight <= 0 {
		cfg.CapabilityWeight = defaults.CapabilityWeight
	}
	if cfg.LongContextBonus <= 0 {
		cfg.LongContextBonus = defaults.LongContextBonus
	}
	if cfg.ComplexityBonus <= 0 {
		cfg.ComplexityBonus = defaults.ComplexityBonus
	}
	if cfg.PriorityBonus <= 0 {
		cfg.PriorityBonus = defaults.PriorityBonus
	}
	if cfg.HealthWeight <= 0 {
		cfg.HealthWeight = defaults.HealthWeight
	}
	if cfg.PreferredBonus <= 0 {
		cfg.PreferredBonus = defaults.PreferredBonus
	}
	if cfg.LongContextMinBytes <= 0 {
		cfg.LongContextMinBytes = defaults.LongContextMinBytes
	}
	return &Scorer{cfg: cfg}
}

// Score ranks targets by descending score. Only targets scoring above
// zero are candidates, unless nothing does, in which case every target
// is returned as a degraded candidate set so the selector still has a
// choice whenever the registry is non-empty. Ties keep the targets'
// input order (registration order), which is the documented tie-break.
func (s *Scorer) Score(features routing.RequestFeatures, targets []routing.Target, metrics map[string]routing.ModelMetrics) []routing.ScoredCandidate {
	scored := make([]routing.ScoredCandidate, 0, len(targets))
	for _, target := range targets {
		scored = append(scored, s.scoreTarget(features, target, metrics[target.ID]))
	}

	candidates := make([]routing.ScoredCandidate, 0, len(scored))
	for _, c := range scored {
		if c.Score > 0 {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 && len(scored) > 0 {
		// Degraded set: every enabled target stays choosable even when
		// exclusions or capability mismatch zeroed all scores.
		for i := range scored {
			scored[i].Reasons = append(scored[i].Reasons, "degraded: no positive scores")
		}
		candidates = scored
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

func (s *Scorer) scoreTarget(features routing.RequestFeatures, target routing.Target, m routing.ModelMetrics) routing.ScoredCandidate {
	candidate := routing.ScoredCandidate{Target: target}

	if features.Excluded(target.ID) {
		candidate.Reasons = []string{"excluded by directive"}
		return candidate
	}

	matched := intersect(features.Capabilities, target.Capabilities)
	if len(features.Capabilities) > 0 {
		candidate.CapabilityRatio = float64(len(matched)) / float64(len(features.Capabilities))
	}
	if len(matched) > 0 {
		candidate.Score += candidate.CapabilityRatio * s.cfg.CapabilityWeight
		candidate.Reasons = append(candidate.Reasons,
			"capabilities: "+strings.Join(matched, ","))
	}

	if features.ContentLength > s.cfg.LongContextMinBytes && hasCapability(target, routing.CapLongContext) {
		candidate.Score += s.cfg.LongContextBonus
		candidate.Reasons = append(candidate.Reasons, "long-context payload")
	}
	if features.Complexity == routing.ComplexityComplex && hasCapability(target, routing.CapThinking) {
		candidate.Score += s.cfg.ComplexityBonus
		candidate.Reasons = append(candidate.Reasons, "complex request, thinking target")
	}
	if features.Priority == routing.PriorityHigh && hasCapability(target, routing.CapHighPerformance) {
		candidate.Score += s.cfg.PriorityBonus
		candidate.Reasons = append(candidate.Reasons, "high priority, high-performance target")
	}

	health := (1 - m.ErrorRate()) * 100 * s.cfg.HealthWeight
	candidate.Score += health
	candidate.Reasons = append(candidate.Reasons,
		fmt.Sprintf("health %.1f", health))

	if features.Preferred(target.ID) {
		candidate.Score += s.cfg.PreferredBonus
		candidate.Reasons = append(candidate.Reasons, "preferred by directive")
	}

	return candidate
}

func intersect(required, available []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, c := range available {
		have[c] = struct{}{}
	}
	var matched []string
	for _, c := range required {
		if _, ok := have[c]; ok {
			matched = append(matched, c)
		}
	}
	return matched
}

func hasCapability(target routing.Target, capability string) bool {
	for _, c := range target.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
