package bus

import (
	"fmt"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
)

// New builds the configured bus implementation: in-process channels for
// the Community tier, NATS for Pro.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
