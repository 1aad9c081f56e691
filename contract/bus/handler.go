package bus

import "context"

// Handler handles one message addressed to it by name and returns a reply.
// Implementations must be safe for concurrent use by multiple goroutines.
type Handler interface {
	Handle(ctx context.Context, msg any) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, msg any) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, msg any) (any, error) { return f(ctx, msg) }

// TypedHandler handles messages of type M and returns a reply of type R.
// Implementations must be safe for concurrent use by multiple goroutines.
type TypedHandler[M any, R any] interface {
	Handle(ctx context.Context, msg M) (R, error)
}

// StatusReply is implemented by replies that carry an application-level status.
// Middleware uses it to tell rejected requests from handled ones.
type StatusReply interface {
	OK() bool
}
