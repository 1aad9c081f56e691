package servicebus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
)

// Bus is a thin in-process mediator that routes messages to handlers by name.
// Registration is expected at startup; dispatch is read-only afterwards.
//
// Bus is concurrency-safe and contains no global state.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]cbus.Handler

	// global dispatch middleware executed in registration order
	mw       []Middleware
	dispatch DispatchFunc

	pub      cbus.EventPublisher
	logger   *slog.Logger
	cleanups []func()

	closeOnce sync.Once
	closeErr  error
}

var _ cbus.Bus = (*Bus)(nil)

// DispatchFunc is the shape of a single dispatch through the bus.
type DispatchFunc func(ctx context.Context, name string, msg any) (any, error)

// Middleware wraps dispatch. Middlewares are executed in registration order and must not
// alter the message or the reply.
type Middleware func(next DispatchFunc) DispatchFunc

// Option configures a Bus instance.
type Option func(*Bus)

// WithMiddleware registers global dispatch middleware via an option.
func WithMiddleware(mw ...Middleware) Option {
	return func(b *Bus) { b.mw = append(b.mw, mw...) }
}

// WithCleanup registers a function run once by Close, after the publisher is closed.
// Adapter constructors return such cleanups for their broker connections.
func WithCleanup(fn func()) Option {
	return func(b *Bus) {
		if fn != nil {
			b.cleanups = append(b.cleanups, fn)
		}
	}
}

// New constructs a new Bus with an optional publisher and logger.
func New(pub cbus.EventPublisher, logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	b := &Bus{
		handlers: make(map[string]cbus.Handler),
		pub:      pub,
		logger:   logger,
	}

	for _, o := range opts {
		o(b)
	}

	// Build chain so the first registered middleware runs first
	final := b.route
	for i := len(b.mw) - 1; i >= 0; i-- {
		final = b.mw[i](final)
	}

	b.dispatch = final

	return b
}

// Register stores h under name. Registering an existing name replaces the previous handler.
func (b *Bus) Register(name string, h cbus.Handler) error {
	if name == "" || h == nil {
		return fmt.Errorf("register %q: %w", name, berr.ErrInvalidHandler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[name]; exists {
		b.logger.Debug("handler replaced", "handler", name)
	}

	b.handlers[name] = h

	return nil
}

// Names returns the registered handler names in lexical order.
func (b *Bus) Names() []string {
	b.mu.RLock()
	names := make([]string, 0, len(b.handlers))

	for n := range b.handlers {
		names = append(names, n)
	}
	b.mu.RUnlock()

	slices.Sort(names)

	return names
}

// Dispatch delivers msg to the handler registered under name and returns its reply as is.
func (b *Bus) Dispatch(ctx context.Context, name string, msg any) (any, error) {
	return b.dispatch(ctx, name, msg)
}

func (b *Bus) route(ctx context.Context, name string, msg any) (any, error) {
	b.mu.RLock()
	h, ok := b.handlers[name]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("dispatch %q: %w", name, berr.ErrUnknownHandler)
	}

	return h.Handle(ctx, msg)
}

// PublishIntegration publishes an integration event via the configured EventPublisher.
func (b *Bus) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if b.pub == nil {
		return fmt.Errorf("publish integration %T: %w", e, berr.ErrAsyncNotConfigured)
	}

	return b.pub.PublishIntegration(ctx, e, opts)
}

// HasPublisher reports whether integration events can leave the process.
func (b *Bus) HasPublisher() bool { return b.pub != nil }

// Close releases the publisher (when it implements io.Closer) and runs registered cleanups.
// It is safe to call more than once.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		var errs []error

		if c, ok := b.pub.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		for i := len(b.cleanups) - 1; i >= 0; i-- {
			b.cleanups[i]()
		}

		b.closeErr = errors.Join(errs...)
	})

	return b.closeErr
}

// Register registers a typed handler for messages of type M producing R under name.
// A message of another type fails with ErrHandlerTypeMismatch before reaching h.
func Register[M any, R any](b *Bus, name string, h cbus.TypedHandler[M, R]) error {
	if h == nil {
		return fmt.Errorf("register %q: %w", name, berr.ErrInvalidHandler)
	}

	return b.Register(name, cbus.HandlerFunc(func(ctx context.Context, v any) (any, error) {
		m, ok := v.(M)
		if !ok {
			return nil, fmt.Errorf("dispatch %q with %T: %w", name, v, berr.ErrHandlerTypeMismatch)
		}

		return h.Handle(ctx, m)
	}))
}

// Send dispatches msg to name and asserts the reply type.
func Send[M any, R any](ctx context.Context, d cbus.Dispatcher, name string, msg M) (R, error) {
	var zero R

	res, err := d.Dispatch(ctx, name, msg)
	if err != nil {
		return zero, err
	}

	r, ok := res.(R)
	if !ok {
		return zero, fmt.Errorf("send %q: reply %T: %w", name, res, berr.ErrHandlerTypeMismatch)
	}

	return r, nil
}
