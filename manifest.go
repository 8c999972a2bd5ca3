package vmroute

import (
	"context"

	"github.com/modelmux/vmroute/internal/config"
)

// ApplyManifest loads a YAML target manifest and registers its targets.
// Existing targets get their routing rules and enablement refreshed
// instead of a duplicate-registration error.
func (e *Engine) ApplyManifest(path string) error {
	return config.NewManager(path, e, e.logger.Slog()).Apply()
}

// WatchManifest applies the manifest and re-applies it whenever the file
// changes, until ctx is canceled.
func (e *Engine) WatchManifest(ctx context.Context, path string) error {
	return config.NewManager(path, e, e.logger.Slog()).Watch(ctx)
}
