package bus

import "context"

// Dispatcher routes a message to the handler registered under name and returns its reply unmodified.
// Unknown names fail with errors.ErrUnknownHandler regardless of the message.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, msg any) (any, error)
}

// Bus is a minimal, tech-agnostic interface that mirrors the capabilities of the
// concrete service bus while remaining non-generic for interface compatibility.
//
// Typed helpers remain available via generic helper functions in the servicebus package.
// This interface is intended for consumers that want to depend only on contracts.
type Bus interface {
	Dispatcher

	// Registration
	Register(name string, h Handler) error
	Names() []string

	// Events
	PublishIntegration(ctx context.Context, event IntegrationEvent, opts PublishOptions) error

	// Lifecycle
	Close() error
}
