package vmroute_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmroute "github.com/modelmux/vmroute"
	"github.com/modelmux/vmroute/metrics"
	"github.com/modelmux/vmroute/pkg/routing"
)

func chatRequest() *routing.ClientRequest {
	return &routing.ClientRequest{
		Method: "POST",
		Path:   "/v1/chat/completions",
		Body:   "hello",
	}
}

func mustRegister(t *testing.T, e *vmroute.Engine, targets ...routing.Target) {
	t.Helper()
	for _, target := range targets {
		require.NoError(t, e.Register(target))
	}
}

func TestRoute_SingleTarget(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{ID: "gpt", Name: "GPT", Provider: "openai"})

	target, err := e.Route(chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "gpt", target.ID)
}

func TestRoute_NoEnabledTargets(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })

	_, err := e.Route(chatRequest())
	assert.ErrorIs(t, err, routing.ErrNoEnabledTargets)

	mustRegister(t, e, routing.Target{
		ID: "off", Name: "off", Provider: "openai", Enabled: routing.Bool(false),
	})
	_, err = e.Route(chatRequest())
	assert.ErrorIs(t, err, routing.ErrNoEnabledTargets)
}

func TestRoute_NilRequest(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })

	_, err := e.Route(nil)
	var invalid *routing.InvalidTargetError
	assert.ErrorAs(t, err, &invalid)
}

func TestRoute_ExplicitTargetIsStrict(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e,
		routing.Target{ID: "gpt", Name: "GPT", Provider: "openai"},
		routing.Target{ID: "off", Name: "off", Provider: "openai", Enabled: routing.Bool(false)},
	)

	t.Run("known and enabled", func(t *testing.T) {
		req := chatRequest()
		req.ExplicitTargetID = "gpt"
		sel, err := e.RouteDetailed(req)
		require.NoError(t, err)
		assert.Equal(t, "gpt", sel.Target.ID)
		assert.InDelta(t, 1.0, sel.Confidence, 1e-9)
		assert.Contains(t, sel.Reason, "explicit target")
	})

	t.Run("unknown id never falls back", func(t *testing.T) {
		req := chatRequest()
		req.ExplicitTargetID = "ghost"
		_, err := e.Route(req)
		assert.True(t, routing.IsNotFound(err))
	})

	t.Run("disabled id never substitutes", func(t *testing.T) {
		req := chatRequest()
		req.ExplicitTargetID = "off"
		_, err := e.Route(req)
		var disabled *routing.TargetDisabledError
		assert.ErrorAs(t, err, &disabled)
	})
}

// A large reasoning request lands on the thinking target even though a
// plain chat target was registered first.
func TestRoute_ReasoningRequestPrefersThinkingTarget(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e,
		routing.Target{ID: "gpt", Name: "GPT", Provider: "openai",
			Capabilities: []string{"chat", "streaming"}},
		routing.Target{ID: "reasoner", Name: "Reasoner", Provider: "deepseek",
			Capabilities: []string{"chat", "thinking"}},
	)

	req := &routing.ClientRequest{
		Method: "POST",
		Path:   "/v1/chat/completions",
		Body:   strings.Repeat("x", 9000) + " please reason about this",
	}
	sel, err := e.RouteDetailed(req)
	require.NoError(t, err)
	assert.Equal(t, "reasoner", sel.Target.ID)
	require.Len(t, sel.Alternatives, 1)
	assert.Equal(t, "gpt", sel.Alternatives[0].ID)
	assert.False(t, sel.Fallback)
}

func TestRoute_DirectiveHeaders(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e,
		routing.Target{ID: "a", Name: "a", Provider: "openai"},
		routing.Target{ID: "b", Name: "b", Provider: "openai"},
	)

	t.Run("preferred model wins", func(t *testing.T) {
		req := chatRequest()
		req.Headers = map[string]string{"x-rcc-preferred-model": "b"}
		target, err := e.Route(req)
		require.NoError(t, err)
		assert.Equal(t, "b", target.ID)
	})

	t.Run("excluded model avoided", func(t *testing.T) {
		req := chatRequest()
		req.Headers = map[string]string{"x-rcc-exclude-models": "a"}
		target, err := e.Route(req)
		require.NoError(t, err)
		assert.Equal(t, "b", target.ID)
	})
}

// Excluding the only registered target still yields a routing decision:
// routing degrades rather than failing a servable request.
func TestRoute_ExcludingOnlyTargetStillRoutes(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{ID: "only", Name: "only", Provider: "openai"})

	req := chatRequest()
	req.Headers = map[string]string{"x-rcc-exclude-models": "only"}
	target, err := e.Route(req)
	require.NoError(t, err)
	assert.Equal(t, "only", target.ID)
}

func TestRoute_TieBreaksByRegistrationOrder(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e,
		routing.Target{ID: "zeta", Name: "zeta", Provider: "openai"},
		routing.Target{ID: "alpha", Name: "alpha", Provider: "openai"},
	)

	for i := 0; i < 5; i++ {
		target, err := e.Route(chatRequest())
		require.NoError(t, err)
		assert.Equal(t, "zeta", target.ID)
	}
}

func TestRoute_RuleMatchAnnotatesReason(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{
		ID: "gpt", Name: "GPT", Provider: "openai",
		RoutingRules: []routing.Rule{
			{ID: "r1", Name: "chat traffic", Condition: "path:/chat", Weight: 0.8, Priority: 5},
		},
	})

	sel, err := e.RouteDetailed(chatRequest())
	require.NoError(t, err)
	assert.Contains(t, sel.Reason, `rule "chat traffic" matched`)
}

func TestMetrics_Conservation(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{ID: "gpt", Name: "GPT", Provider: "openai"})

	const n = 7
	for i := 0; i < n; i++ {
		_, err := e.Route(chatRequest())
		require.NoError(t, err)
	}
	require.NoError(t, e.RecordOutcome("gpt", false))
	require.NoError(t, e.RecordOutcome("gpt", false))
	require.NoError(t, e.RecordOutcome("gpt", true))

	m, err := e.GetMetrics("gpt")
	require.NoError(t, err)
	assert.EqualValues(t, n, m.TotalRequests, "outcomes never change the total")
	assert.EqualValues(t, n-2, m.SuccessfulRequests)
	assert.EqualValues(t, 2, m.FailedRequests)
	assert.InDelta(t, 2.0/float64(n), m.ErrorRate(), 1e-9)
	assert.False(t, m.LastUsed.IsZero())
}

func TestMetrics_UnknownTarget(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })

	_, err := e.GetMetrics("ghost")
	assert.True(t, routing.IsNotFound(err))
	assert.True(t, routing.IsNotFound(e.RecordOutcome("ghost", true)))
}

func TestUnregister_RoutesAwayAndDropsMetrics(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e,
		routing.Target{ID: "a", Name: "a", Provider: "openai"},
		routing.Target{ID: "b", Name: "b", Provider: "openai"},
	)

	require.NoError(t, e.Unregister("a"))
	assert.True(t, routing.IsNotFound(e.Unregister("a")))

	target, err := e.Route(chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "b", target.ID)

	_, err = e.GetMetrics("a")
	assert.True(t, routing.IsNotFound(err))
}

func TestHealthSweep_AutoDisableEndToEnd(t *testing.T) {
	e := vmroute.New(vmroute.WithAutoDisable(true))
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{ID: "failing", Name: "failing", Provider: "openai"})

	for i := 0; i < 12; i++ {
		_, err := e.Route(chatRequest())
		require.NoError(t, err)
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, e.RecordOutcome("failing", false))
	}

	reports := e.RunHealthSweep()
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Healthy)
	assert.True(t, reports[0].Disabled)

	_, err := e.Route(chatRequest())
	assert.ErrorIs(t, err, routing.ErrNoEnabledTargets)

	// The target stays registered and can be re-enabled by an operator.
	assert.Len(t, e.ListTargets(), 1)
	assert.Empty(t, e.ListEnabledTargets())

	require.NoError(t, e.SetTargetEnabled("failing", true))
	target, err := e.Route(chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "failing", target.ID)
}

func TestSetTargetEnabled_UnknownTarget(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })

	assert.True(t, routing.IsNotFound(e.SetTargetEnabled("ghost", false)))
}

func TestEngine_WithRedisMetricsStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := vmroute.New(vmroute.WithMetricsStore(metrics.NewRedisStore(client)))
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{ID: "gpt", Name: "GPT", Provider: "openai"})

	for i := 0; i < 3; i++ {
		_, err := e.Route(chatRequest())
		require.NoError(t, err)
	}
	require.NoError(t, e.RecordOutcome("gpt", false))

	m, err := e.GetMetrics("gpt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, m.TotalRequests)
	assert.EqualValues(t, 1, m.FailedRequests)
}

func TestApplyManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	manifest := `
targets:
  - id: gpt-fast
    name: Fast GPT
    provider: openai
    capabilities: [chat, streaming]
  - id: reasoner
    name: Reasoner
    provider: deepseek
    capabilities: [chat, thinking]
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	require.NoError(t, e.ApplyManifest(path))

	targets := e.ListTargets()
	require.Len(t, targets, 2)
	assert.Equal(t, "gpt-fast", targets[0].ID)

	target, err := e.Route(chatRequest())
	require.NoError(t, err)
	assert.Equal(t, "gpt-fast", target.ID)
}

// Routing the same request id twice reuses the first analysis: a body
// mutated between calls must not change the decision while the feature
// cache holds the entry.
func TestRoute_FeatureCacheSharesAnalysisPerRequestID(t *testing.T) {
	register := func(e *vmroute.Engine) {
		mustRegister(t, e,
			routing.Target{ID: "gpt", Name: "GPT", Provider: "openai",
				Capabilities: []string{"chat", "streaming"}},
			routing.Target{ID: "reasoner", Name: "Reasoner", Provider: "deepseek",
				Capabilities: []string{"chat", "thinking"}},
		)
	}
	reasoningBody := strings.Repeat("x", 9000) + " please reason about this"

	t.Run("cached features win over a mutated body", func(t *testing.T) {
		e := vmroute.New(vmroute.WithFeatureCacheTTL(time.Minute))
		t.Cleanup(func() { _ = e.Close() })
		register(e)

		req := chatRequest()
		req.ID = "req-cached"
		target, err := e.Route(req)
		require.NoError(t, err)
		require.Equal(t, "gpt", target.ID)

		req.Body = reasoningBody
		target, err = e.Route(req)
		require.NoError(t, err)
		assert.Equal(t, "gpt", target.ID, "second route reuses the memoized analysis")
	})

	t.Run("disabled cache re-analyzes every call", func(t *testing.T) {
		e := vmroute.New(vmroute.WithFeatureCacheTTL(0))
		t.Cleanup(func() { _ = e.Close() })
		register(e)

		req := chatRequest()
		req.ID = "req-uncached"
		target, err := e.Route(req)
		require.NoError(t, err)
		require.Equal(t, "gpt", target.ID)

		req.Body = reasoningBody
		target, err = e.Route(req)
		require.NoError(t, err)
		assert.Equal(t, "reasoner", target.ID, "fresh analysis sees the new body")
	})
}

func TestRouteDetailed_AssignsRequestID(t *testing.T) {
	e := vmroute.New()
	t.Cleanup(func() { _ = e.Close() })
	mustRegister(t, e, routing.Target{ID: "gpt", Name: "GPT", Provider: "openai"})

	req := chatRequest()
	require.Empty(t, req.ID)
	_, err := e.RouteDetailed(req)
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
}
