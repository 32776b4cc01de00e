package policy

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Load reads a policy document (YAML or JSON) from path. An empty path
// yields the built-in default policy; a named file that is missing or
// malformed fails loudly, as does a structurally invalid document.
func Load(path string) (*domain.PolicyConfig, error) {
	if path == "" {
		return domain.DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (*domain.PolicyConfig, error) {
	var cfg domain.PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return &cfg, nil
}
