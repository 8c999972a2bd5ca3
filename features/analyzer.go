// Package features derives RequestFeatures from a raw client request.
// The substring heuristics here are the only capability signal when a
// request does not name a virtual model explicitly, so extraction order
// is load-bearing and covered by tests.
package features

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/modelmux/vmroute/pkg/routing"
)

// chatPathFragments are endpoint path fragments that imply a chat-style
// request.
var chatPathFragments = []string{"/chat", "/completions", "/messages", "/generate"}

var (
	toolPathTokens     = []string{"function", "tool"}
	longContextTokens  = []string{"long", "context"}
	thinkingTokens     = []string{"think", "reason", "step"}
	codingTokens       = []string{"code", "program", "function"}
	multilingualTokens = []string{"translate", "translation", "language", "multilingual"}
)

// Analyzer derives request features. It is pure: same request in, same
// features out, no state mutated.
type Analyzer struct {
	cfg routing.Config
}

// New creates an analyzer. Zero-valued thresholds fall back to defaults.
func New(cfg routing.Config) *Analyzer {
	defaults := routing.DefaultConfig()
	if cfg.ComplexMinBytes <= 0 {
		cfg.ComplexMinBytes = defaults.ComplexMinBytes
	}
	if cfg.MediumMinBytes <= 0 {
		cfg.MediumMinBytes = defaults.MediumMinBytes
	}
	if cfg.LongContextMinBytes <= 0 {
		cfg.LongContextMinBytes = defaults.LongContextMinBytes
	}
	return &Analyzer{cfg: cfg}
}

// Analyze extracts required capabilities, payload size, complexity,
// priority, and special directives from the request.
func (a *Analyzer) Analyze(req *routing.ClientRequest) routing.RequestFeatures {
	if req == nil {
		return routing.RequestFeatures{
			Capabilities: []string{routing.CapChat},
			Complexity:   routing.ComplexitySimple,
			Priority:     routing.PriorityMedium,
		}
	}

	body := serializeBody(req.Body)
	lowerBody := strings.ToLower(body)
	lowerPath := strings.ToLower(req.Path)

	features := routing.RequestFeatures{
		Capabilities:  a.extractCapabilities(req, lowerPath, lowerBody, len(body)),
		ContentLength: len(body),
		Complexity:    a.classifyComplexity(len(body)),
		Priority:      a.classifyPriority(req, lowerPath),
		Directives:    ParseDirectives(req.Headers),
	}
	return features
}

// extractCapabilities builds the required capability set in a fixed
// order: method/path signals, then body heuristics, then the explicit
// capability header, then the chat default.
func (a *Analyzer) extractCapabilities(req *routing.ClientRequest, lowerPath, lowerBody string, bodyLen int) []string {
	var caps []string

	if strings.EqualFold(req.Method, "POST") || containsAny(lowerPath, chatPathFragments) {
		caps = append(caps, routing.CapChat)
	}
	if strings.Contains(lowerPath, "stream") {
		caps = append(caps, routing.CapStreaming)
	}
	if containsAny(lowerPath, toolPathTokens) {
		caps = append(caps, routing.CapTools)
	}

	if bodyLen > a.cfg.LongContextMinBytes || containsAny(lowerBody, longContextTokens) {
		caps = append(caps, routing.CapLongContext)
	}
	if containsAny(lowerBody, thinkingTokens) {
		caps = append(caps, routing.CapThinking)
	}
	if containsAny(lowerBody, codingTokens) {
		caps = append(caps, routing.CapCoding)
	}
	if containsAny(lowerBody, multilingualTokens) {
		caps = append(caps, routing.CapMultilingual)
	}

	if header := headerValue(req.Headers, HeaderCapabilities); header != "" {
		for _, c := range strings.Split(header, ",") {
			if c = strings.TrimSpace(c); c != "" {
				caps = append(caps, c)
			}
		}
	}

	caps = dedupe(caps)
	if len(caps) == 0 {
		caps = []string{routing.CapChat}
	}
	return caps
}

func (a *Analyzer) classifyComplexity(bodyLen int) routing.Complexity {
	switch {
	case bodyLen > a.cfg.ComplexMinBytes:
		return routing.ComplexityComplex
	case bodyLen > a.cfg.MediumMinBytes:
		return routing.ComplexityMedium
	default:
		return routing.ComplexitySimple
	}
}

func (a *Analyzer) classifyPriority(req *routing.ClientRequest, lowerPath string) routing.Priority {
	switch strings.ToLower(headerValue(req.Headers, HeaderPriority)) {
	case "high":
		return routing.PriorityHigh
	case "low":
		return routing.PriorityLow
	case "medium":
		return routing.PriorityMedium
	}
	if strings.Contains(lowerPath, "urgent") {
		return routing.PriorityHigh
	}
	return routing.PriorityMedium
}

// serializeBody renders the request body as the bytes a gateway would
// forward: strings and raw bytes pass through, everything else is JSON.
func serializeBody(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case json.RawMessage:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
