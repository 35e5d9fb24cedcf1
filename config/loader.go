package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML or JSON settings file on top of NewDefault. The result is
// not validated yet so that command line overrides can be applied first.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: path comes from the operator's command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config %s: %v", ErrInvalidConfig, path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes settings on top of NewDefault. JSON documents are valid input.
func Parse(data []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}
