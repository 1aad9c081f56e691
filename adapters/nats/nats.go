// Package nats publishes integration events as NATS messages. The subject is the
// event topic, optionally under a prefix; routing options travel as headers.
package nats

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/goccy/go-json"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
)

// Client is the minimal publishing surface of a NATS connection.
type Client interface {
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// Publisher implements cbus.EventPublisher over a Client.
type Publisher struct {
	Client     Client
	Propagator cbus.HeaderPropagator
	Prefix     string
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// Option configures a Publisher.
type Option func(*Publisher)

// WithPropagator injects trace context into message headers.
func WithPropagator(p cbus.HeaderPropagator) Option {
	return func(pub *Publisher) { pub.Propagator = p }
}

// WithSubjectPrefix prepends prefix and a dot to every subject.
func WithSubjectPrefix(prefix string) Option {
	return func(pub *Publisher) { pub.Prefix = prefix }
}

// New creates a publisher over c.
func New(c Client, opts ...Option) *Publisher {
	p := &Publisher{Client: c, Propagator: cbus.NopHeaderPropagator{}}
	for _, o := range opts {
		o(p)
	}

	return p
}

func (p *Publisher) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	return p.serializeAndPublish(ctx, p.subject(e, opts), e, p.headers(ctx, opts))
}

func (p *Publisher) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.Client == nil {
		return fmt.Errorf("nats publish: %w", berr.ErrPublishFailed)
	}

	return nil
}

func (p *Publisher) serializeAndPublish(ctx context.Context, subject string, payload any, headers map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("nats publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	if err := p.Client.Publish(ctx, subject, body, headers); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("nats publish %s: %w", subject, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func (p *Publisher) subject(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	topic := e.Topic()
	if o.TopicOverride != "" {
		topic = o.TopicOverride
	}

	if p.Prefix != "" {
		return p.Prefix + "." + topic
	}

	return topic
}

func (p *Publisher) headers(ctx context.Context, o cbus.PublishOptions) map[string]string {
	h := make(map[string]string, len(o.Headers)+3)
	maps.Copy(h, o.Headers)

	if o.Key != "" {
		h["key"] = o.Key
	}

	if p.Propagator != nil {
		p.Propagator.Inject(ctx, h)
	}

	return h
}
