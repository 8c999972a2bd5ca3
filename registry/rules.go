package registry

import (
	"sort"
	"strings"

	"github.com/modelmux/vmroute/pkg/routing"
)

// validateRules checks every rule up front so rule updates are all or
// nothing.
func validateRules(rules []routing.Rule) error {
	for _, rule := range rules {
		if strings.TrimSpace(rule.ID) == "" {
			return routing.NewInvalidRuleError("", "id is required")
		}
		if strings.TrimSpace(rule.Name) == "" {
			return routing.NewInvalidRuleError(rule.ID, "name is required")
		}
		if rule.Weight < 0 || rule.Weight > 1 {
			return routing.NewInvalidRuleError(rule.ID, "weight must be in [0,1]")
		}
		if rule.Priority < 1 || rule.Priority > 10 {
			return routing.NewInvalidRuleError(rule.ID, "priority must be in [1,10]")
		}
		if !validCondition(rule.Condition) {
			return routing.NewInvalidRuleError(rule.ID, "condition must start with path:, method:, or header:")
		}
	}
	return nil
}

func validCondition(condition string) bool {
	switch {
	case strings.HasPrefix(condition, "path:"):
		return len(condition) > len("path:")
	case strings.HasPrefix(condition, "method:"):
		return len(condition) > len("method:")
	case strings.HasPrefix(condition, "header:"):
		rest := condition[len("header:"):]
		name, _, ok := strings.Cut(rest, "=")
		return ok && name != ""
	default:
		return false
	}
}

// MatchRule evaluates a target's rules against a request in descending
// priority order and returns the first enabled match. Rules are advisory:
// a match annotates the scoring reason, it never gates candidacy.
func MatchRule(rules []routing.Rule, req *routing.ClientRequest) (routing.Rule, bool) {
	if len(rules) == 0 || req == nil {
		return routing.Rule{}, false
	}

	ordered := append([]routing.Rule(nil), rules...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for _, rule := range ordered {
		if !rule.IsEnabled() {
			continue
		}
		if evalCondition(rule.Condition, req) {
			return rule, true
		}
	}
	return routing.Rule{}, false
}

func evalCondition(condition string, req *routing.ClientRequest) bool {
	switch {
	case strings.HasPrefix(condition, "path:"):
		fragment := condition[len("path:"):]
		return strings.Contains(req.Path, fragment)
	case strings.HasPrefix(condition, "method:"):
		verb := condition[len("method:"):]
		return strings.EqualFold(req.Method, verb)
	case strings.HasPrefix(condition, "header:"):
		rest := condition[len("header:"):]
		name, want, ok := strings.Cut(rest, "=")
		if !ok {
			return false
		}
		for key, value := range req.Headers {
			if strings.EqualFold(key, name) {
				return value == want
			}
		}
		return false
	default:
		return false
	}
}
