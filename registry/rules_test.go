package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelmux/vmroute/pkg/routing"
	"github.com/modelmux/vmroute/registry"
)

func TestMatchRule_Conditions(t *testing.T) {
	cases := []struct {
		name      string
		condition string
		req       routing.ClientRequest
		match     bool
	}{
		{
			"path fragment matches",
			"path:/chat",
			routing.ClientRequest{Path: "/v1/chat/completions"},
			true,
		},
		{
			"path fragment absent",
			"path:/embeddings",
			routing.ClientRequest{Path: "/v1/chat/completions"},
			false,
		},
		{
			"method case-insensitive",
			"method:post",
			routing.ClientRequest{Method: "POST"},
			true,
		},
		{
			"method mismatch",
			"method:GET",
			routing.ClientRequest{Method: "POST"},
			false,
		},
		{
			"header name case-insensitive, value exact",
			"header:x-tenant=acme",
			routing.ClientRequest{Headers: map[string]string{"X-Tenant": "acme"}},
			true,
		},
		{
			"header value mismatch",
			"header:x-tenant=acme",
			routing.ClientRequest{Headers: map[string]string{"x-tenant": "other"}},
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := []routing.Rule{
				{ID: "r", Name: "r", Condition: tc.condition, Weight: 0.5, Priority: 5},
			}
			_, ok := registry.MatchRule(rules, &tc.req)
			assert.Equal(t, tc.match, ok)
		})
	}
}

func TestMatchRule_HighestPriorityWins(t *testing.T) {
	rules := []routing.Rule{
		{ID: "low", Name: "low", Condition: "method:POST", Weight: 0.5, Priority: 2},
		{ID: "high", Name: "high", Condition: "method:POST", Weight: 0.5, Priority: 9},
	}

	rule, ok := registry.MatchRule(rules, &routing.ClientRequest{Method: "POST"})
	require.True(t, ok)
	assert.Equal(t, "high", rule.ID)
}

func TestMatchRule_SkipsDisabledRules(t *testing.T) {
	rules := []routing.Rule{
		{ID: "off", Name: "off", Condition: "method:POST", Weight: 0.5, Priority: 9, Enabled: routing.Bool(false)},
		{ID: "on", Name: "on", Condition: "method:POST", Weight: 0.5, Priority: 2},
	}

	rule, ok := registry.MatchRule(rules, &routing.ClientRequest{Method: "POST"})
	require.True(t, ok)
	assert.Equal(t, "on", rule.ID)
}

func TestMatchRule_NoRulesOrRequest(t *testing.T) {
	_, ok := registry.MatchRule(nil, &routing.ClientRequest{Method: "POST"})
	assert.False(t, ok)

	rules := []routing.Rule{{ID: "r", Name: "r", Condition: "method:POST", Weight: 0.5, Priority: 5}}
	_, ok = registry.MatchRule(rules, nil)
	assert.False(t, ok)
}

func TestMatchRule_DoesNotReorderInput(t *testing.T) {
	rules := []routing.Rule{
		{ID: "a", Name: "a", Condition: "method:GET", Weight: 0.5, Priority: 1},
		{ID: "b", Name: "b", Condition: "method:POST", Weight: 0.5, Priority: 9},
	}

	_, _ = registry.MatchRule(rules, &routing.ClientRequest{Method: "POST"})
	assert.Equal(t, "a", rules[0].ID)
	assert.Equal(t, "b", rules[1].ID)
}
