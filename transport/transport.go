// Package transport defines the pluggable messaging backends the event
// bridge publishes to and consumes from. Each backend lives in its own
// sub-package and registers itself with the transport registry under the
// name the configuration selects it by.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines the publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder creates a transport from configuration. Each backend package
// provides one and registers it under its transport name.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config exposes the configuration values transports read. The interface
// keeps backend packages independent of the full config package.
type Config interface {
	// GetMessagingSystem returns the selected transport name.
	GetMessagingSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS
	GetNATSURL() string
}

// CapabilitiesProvider is implemented by transports that report their
// capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
