package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
)

// DefaultExchange is the topic exchange integration events are published to.
const DefaultExchange = "integration"

// PubMsg is one AMQP publishing.
type PubMsg struct {
	Exchange   string
	RoutingKey string
	Body       []byte
	Headers    map[string]string
}

// Sender delivers a PubMsg to the broker.
type Sender interface {
	Publish(ctx context.Context, m PubMsg) error
}

// Publisher implements cbus.EventPublisher over a Sender.
type Publisher struct {
	Sender     Sender
	Exchange   string
	Propagator cbus.HeaderPropagator
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// New creates a publisher on exchange. An empty exchange uses DefaultExchange.
func New(s Sender, exchange string, hp cbus.HeaderPropagator) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}

	return &Publisher{Sender: s, Exchange: exchange, Propagator: hp}
}

func (p *Publisher) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := p.ready(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	return p.publish(ctx, PubMsg{
		Exchange:   p.Exchange,
		RoutingKey: routingForEvent(e, opts),
		Body:       body,
		Headers:    publishHeaders(opts),
	})
}

func (p *Publisher) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.Sender == nil {
		return fmt.Errorf("rabbitmq publish: %w", berr.ErrPublishFailed)
	}

	return nil
}

func (p *Publisher) publish(ctx context.Context, m PubMsg) error {
	if p.Propagator != nil {
		p.Propagator.Inject(ctx, m.Headers)
	}

	if err := p.Sender.Publish(ctx, m); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("rabbitmq publish %s: %w", m.RoutingKey, errors.Join(berr.ErrPublishFailed, err))
	}

	return nil
}

func routingForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

// publishHeaders copies the caller's headers so injection never mutates them.
func publishHeaders(o cbus.PublishOptions) map[string]string {
	h := make(map[string]string, len(o.Headers)+4)
	maps.Copy(h, o.Headers)

	if o.Key != "" {
		h["key"] = o.Key
	}

	return h
}

func amqpPublishing(m PubMsg) amqp.Publishing {
	var h amqp.Table
	if len(m.Headers) > 0 {
		h = make(amqp.Table, len(m.Headers))
		for k, v := range m.Headers {
			h[k] = v
		}
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Headers:      h,
		ContentType:  "application/json",
		Body:         m.Body,
	}
}
