package domain

import (
	"context"
)

// EventBus carries pipeline events between the API, the async worker and
// any external consumers. Community tier runs on in-process channels, Pro
// on NATS. Every operation is tenant-scoped; there is no cross-tenant
// delivery.
type EventBus interface {
	// Publish sends a payload to a topic. Delivery is at-most-once.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic and returns the live
	// subscription.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

	Ping(ctx context.Context) error
	Close() error
}

// MessageHandler processes one delivered message. A returned error is
// logged by the bus; it does not trigger redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message is the envelope every published payload travels in.
type Message struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription is an active topic registration.
type Subscription interface {
	Unsubscribe() error
	Topic() string
}

// EventBusConfig selects and tunes the bus implementation.
type EventBusConfig struct {
	// Type is "channel" (Community) or "nats" (Pro).
	Type string

	ChannelBufferSize int

	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Pipeline topics. The NATS subject adds the tenant in front, so the
// topic itself stays tenant-free.
const (
	TopicAlertIngested = "alert.ingested"
	TopicDecision      = "decision"
	TopicAlertCritical = "alert.critical"
)
