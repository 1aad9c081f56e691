package bus

import "context"

// IntegrationEvent represents events destined to external brokers (async). Topic() may guide routing.
type IntegrationEvent interface{ Topic() string }

// EventPublisher abstracts publishing integration events to a broker/bus.
// Implementations map to Kafka/NATS/RabbitMQ or an in-memory recorder.
type EventPublisher interface {
	PublishIntegration(ctx context.Context, evt IntegrationEvent, opts PublishOptions) error
}

// PublishOptions controls integration event publishing.
type PublishOptions struct {
	TopicOverride string
	Key           string
	Headers       map[string]string
}
