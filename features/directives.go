package features

import (
	"strings"

	"github.com/modelmux/vmroute/pkg/routing"
)

// Request headers the analyzer understands. Matched case-insensitively.
const (
	// HeaderCapabilities carries a comma-separated capability list merged
	// verbatim into the required set.
	HeaderCapabilities = "x-rcc-capabilities"

	// HeaderPriority carries an explicit priority tier (low|medium|high).
	HeaderPriority = "x-rcc-priority"

	// HeaderPreferredModel names target ids that earn a scoring bonus.
	HeaderPreferredModel = "x-rcc-preferred-model"

	// HeaderExcludeModels names target ids whose score is zeroed.
	HeaderExcludeModels = "x-rcc-exclude-models"
)

// ParseDirectives extracts preferred-model and exclude-models tokens from
// request headers. Both headers accept comma-separated id lists.
// Unrecognized headers are ignored.
func ParseDirectives(headers map[string]string) []routing.Directive {
	var directives []routing.Directive

	for _, id := range splitHeaderList(headerValue(headers, HeaderPreferredModel)) {
		directives = append(directives, routing.Directive{
			Kind:     routing.DirectivePreferModel,
			TargetID: id,
		})
	}
	for _, id := range splitHeaderList(headerValue(headers, HeaderExcludeModels)) {
		directives = append(directives, routing.Directive{
			Kind:     routing.DirectiveExcludeModels,
			TargetID: id,
		})
	}
	return directives
}

// headerValue performs a case-insensitive header lookup.
func headerValue(headers map[string]string, name string) string {
	if headers == nil {
		return ""
	}
	if v, ok := headers[name]; ok {
		return v
	}
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func splitHeaderList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
