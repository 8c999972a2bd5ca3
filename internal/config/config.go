// Package config loads the target manifest: a YAML file declaring the
// virtual model targets a gateway registers at startup. A Manager can
// watch the file and re-apply changes without a restart.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modelmux/vmroute/pkg/routing"
)

// Manifest is the on-disk shape of the target set.
type Manifest struct {
	Targets []routing.Target `yaml:"targets"`
}

// LoadFromFile reads and validates a manifest.
func LoadFromFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals and validates manifest bytes.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest before any target reaches the registry:
// required fields present and no duplicate ids within the file. The
// registry re-validates on Register; this pass exists so one bad entry
// rejects the file before any partial application.
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Targets))
	for i, t := range m.Targets {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("manifest target %d: id is required", i)
		}
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("manifest target %q: name is required", t.ID)
		}
		if strings.TrimSpace(t.Provider) == "" {
			return fmt.Errorf("manifest target %q: provider is required", t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("manifest target %q: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
