package model

import (
	"fmt"
	"time"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// Load builds the configured model adapter. Local models read their
// artifact from artifactPath; remote models only need the service URL.
func Load(cfg domain.ModelConfig, artifactPath string) (domain.Model, error) {
	switch cfg.Type {
	case "", "linear":
		return LoadLinear(artifactPath)
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("model config: remote model needs a URL")
		}
		return NewRemote(cfg.RemoteURL, time.Duration(cfg.RemoteTimeoutMs)*time.Millisecond), nil
	}
	return nil, fmt.Errorf("model config: unknown model type %q", cfg.Type)
}
