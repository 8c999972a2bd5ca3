package scoring

import (
	"strings"

	"github.com/modelmux/vmroute/pkg/routing"
)

// Confidence coefficients. Confidence is a secondary observability
// metric computed independently of the ranking score; it never re-ranks.
const (
	confidenceCapabilityWeight = 0.6
	confidenceHealthWeight     = 0.25
	confidenceSuccessWeight    = 0.15
)

// Selector applies the pick-highest policy to a ranked candidate list.
type Selector struct{}

// NewSelector creates a selector.
func NewSelector() *Selector {
	return &Selector{}
}

// Select picks the highest-scored candidate and reports the rest as
// alternatives. An empty candidate list is ErrNoSuitableTarget; the
// engine decides whether a last-resort fallback applies.
func (s *Selector) Select(candidates []routing.ScoredCandidate, metrics map[string]routing.ModelMetrics) (*routing.Selection, error) {
	if len(candidates) == 0 {
		return nil, routing.ErrNoSuitableTarget
	}

	winner := candidates[0]
	alternatives := make([]routing.Target, 0, len(candidates)-1)
	for _, c := range candidates[1:] {
		alternatives = append(alternatives, c.Target)
	}

	return &routing.Selection{
		Target:       winner.Target,
		Confidence:   confidence(winner, metrics[winner.Target.ID]),
		Reason:       reason(winner),
		Alternatives: alternatives,
	}, nil
}

// confidence blends capability match, health, and historical success into
// a 0..1 quality signal for telemetry.
func confidence(c routing.ScoredCandidate, m routing.ModelMetrics) float64 {
	health := 1 - m.ErrorRate()
	return c.CapabilityRatio*confidenceCapabilityWeight +
		health*confidenceHealthWeight +
		m.SuccessRatio()*confidenceSuccessWeight
}

func reason(c routing.ScoredCandidate) string {
	if len(c.Reasons) == 0 {
		return "no scoring signals"
	}
	return strings.Join(c.Reasons, "; ")
}
