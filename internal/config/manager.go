package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/modelmux/vmroute/pkg/routing"
)

// Applier is the slice of the engine the manager drives. New manifest
// entries are registered; existing entries get their rules and
// enablement refreshed. Targets missing from a reloaded manifest are
// left running: the manifest adds and updates, it never silently drops.
type Applier interface {
	Register(target routing.Target) error
	UpdateRoutingRules(id string, rules []routing.Rule) error
	SetTargetEnabled(id string, enabled bool) error
	ListTargets() []routing.Target
}

// Manager applies a manifest to an engine and optionally hot-reloads it
// when the file changes.
type Manager struct {
	path    string
	applier Applier
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewManager creates a manager for the manifest at path.
func NewManager(path string, applier Applier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		path:    path,
		applier: applier,
		logger:  logger,
	}
}

// Apply loads the manifest once and applies it.
func (m *Manager) Apply() error {
	manifest, err := LoadFromFile(m.path)
	if err != nil {
		return err
	}
	return m.apply(manifest)
}

func (m *Manager) apply(manifest *Manifest) error {
	existing := make(map[string]struct{})
	for _, t := range m.applier.ListTargets() {
		existing[t.ID] = struct{}{}
	}

	for _, target := range manifest.Targets {
		if _, known := existing[target.ID]; known {
			if err := m.applier.UpdateRoutingRules(target.ID, target.RoutingRules); err != nil {
				return err
			}
			// An explicit enabled flag in the manifest wins; an absent one
			// leaves the current state alone.
			if target.Enabled != nil {
				if err := m.applier.SetTargetEnabled(target.ID, *target.Enabled); err != nil {
					return err
				}
			}
			continue
		}
		if err := m.applier.Register(target); err != nil {
			return err
		}
	}
	m.logger.Info("manifest applied", "path", m.path, "targets", len(manifest.Targets))
	return nil
}

// Watch applies the manifest, then re-applies it on every write until the
// context is canceled. Rapid write bursts are debounced.
func (m *Manager) Watch(ctx context.Context) error {
	if err := m.Apply(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(m.path); err != nil {
		_ = watcher.Close()
		return err
	}
	m.watcher = watcher

	go m.watchLoop(ctx)
	return nil
}

func (m *Manager) watchLoop(ctx context.Context) {
	const debounceDelay = 500 * time.Millisecond
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			_ = m.watcher.Close()
			return

		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDelay, m.reload)
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("manifest watcher error", "error", err)
		}
	}
}

func (m *Manager) reload() {
	manifest, err := LoadFromFile(m.path)
	if err != nil {
		m.logger.Error("manifest reload failed, keeping current targets", "error", err)
		return
	}
	if err := m.apply(manifest); err != nil {
		m.logger.Error("manifest apply failed", "error", err)
		return
	}
	m.logger.Info("manifest reloaded", "path", m.path)
}

// Close stops the watcher.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
