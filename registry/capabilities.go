package registry

import (
	"strings"

	"github.com/modelmux/vmroute/pkg/routing"
)

// providerBaseCaps is the capability set assumed for backends of known
// providers. Unknown providers contribute only chat.
var providerBaseCaps = map[string][]string{
	"openai":     {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"anthropic":  {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"deepseek":   {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"gemini":     {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"groq":       {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"mistral":    {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"openrouter": {routing.CapChat, routing.CapStreaming, routing.CapTools},
	"ollama":     {routing.CapChat, routing.CapStreaming},
}

// providerEndpoints maps known provider ids to default API endpoints,
// used only when a target does not set its endpoint explicitly.
var providerEndpoints = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"anthropic":  "https://api.anthropic.com/v1",
	"deepseek":   "https://api.deepseek.com/v1",
	"gemini":     "https://generativelanguage.googleapis.com/v1beta",
	"groq":       "https://api.groq.com/openai/v1",
	"mistral":    "https://api.mistral.ai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"ollama":     "http://localhost:11434",
}

// modelCapabilityHints maps substrings of a backend model id to the
// capability they imply. Checked case-insensitively.
var modelCapabilityHints = []struct {
	substrings []string
	capability string
}{
	{[]string{"long", "context"}, routing.CapLongContext},
	{[]string{"think", "reason", "r1"}, routing.CapThinking},
	{[]string{"code", "coder"}, routing.CapCoding},
	{[]string{"vision", "image"}, routing.CapVision},
}

// deriveCapabilities infers a capability set from a backend reference.
// The provider contributes a base set; the model id contributes hints.
func deriveCapabilities(backend routing.BackendRef) []string {
	provider := strings.ToLower(strings.TrimSpace(backend.Provider))
	model := strings.ToLower(strings.TrimSpace(backend.Model))

	caps := []string{routing.CapChat}
	if base, ok := providerBaseCaps[provider]; ok {
		caps = append([]string(nil), base...)
	}

	for _, hint := range modelCapabilityHints {
		for _, sub := range hint.substrings {
			if strings.Contains(model, sub) {
				caps = append(caps, hint.capability)
				break
			}
		}
	}
	return dedupe(caps)
}

// providerEndpoint returns the default endpoint for a known provider, or
// "" for unknown ones.
func providerEndpoint(provider string) string {
	return providerEndpoints[strings.ToLower(strings.TrimSpace(provider))]
}
