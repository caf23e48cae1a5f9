// Package config reads the user preference file, ~/.editor-kit.yaml.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Preferences are defaults for flags the user did not pass. Every field is
// optional.
type Preferences struct {
	Editors   []string `yaml:"editors,omitempty"`
	Scope     string   `yaml:"scope,omitempty"`
	Conflict  string   `yaml:"conflict,omitempty"`
	Source    string   `yaml:"source,omitempty"`
	SourceURL string   `yaml:"source_url,omitempty"`
	SourceRef string   `yaml:"source_ref,omitempty"`
	MergeTool string   `yaml:"merge_tool,omitempty"`
}

// Parse parses preference file bytes.
func Parse(data []byte) (Preferences, error) {
	var prefs Preferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, fmt.Errorf("parsing preferences: %w", err)
	}
	return prefs, nil
}

// Marshal serializes preferences to YAML bytes.
func Marshal(prefs Preferences) ([]byte, error) {
	return yaml.Marshal(prefs)
}

// Load reads the preference file at path. A missing file gives zero
// preferences.
func Load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Preferences{}, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("reading %s: %w", path, err)
	}
	prefs, err := Parse(data)
	if err != nil {
		return Preferences{}, fmt.Errorf("%s: %w", path, err)
	}
	return prefs, nil
}
