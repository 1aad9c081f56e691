// Package kafka publishes integration events as Kafka records. The record key is
// PublishOptions.Key so events for one user land on one partition.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/goccy/go-json"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
)

// Writer is the minimal producing surface of a Kafka client.
type Writer interface {
	Write(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// Publisher implements cbus.EventPublisher over a Writer.
type Publisher struct {
	Writer     Writer
	Propagator cbus.HeaderPropagator
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// New creates a publisher over w. A nil propagator disables trace header injection.
func New(w Writer, prop cbus.HeaderPropagator) *Publisher {
	if prop == nil {
		prop = cbus.NopHeaderPropagator{}
	}

	return &Publisher{Writer: w, Propagator: prop}
}

func (p *Publisher) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.Writer == nil {
		return fmt.Errorf("kafka publish: %w", berr.ErrPublishFailed)
	}

	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka publish serialize: %w", errors.Join(berr.ErrSerializationFailed, err))
	}

	topic := topicForEvent(e, opts)

	var key []byte
	if opts.Key != "" {
		key = []byte(opts.Key)
	}

	headers := make(map[string]string, len(opts.Headers)+2)
	maps.Copy(headers, opts.Headers)

	if p.Propagator != nil {
		p.Propagator.Inject(ctx, headers)
	}

	if err = p.Writer.Write(ctx, topic, key, val, headers); err != nil {
		return wrapProduceErr(topic, err)
	}

	return nil
}

func topicForEvent(e cbus.IntegrationEvent, o cbus.PublishOptions) string {
	if o.TopicOverride != "" {
		return o.TopicOverride
	}

	return e.Topic()
}

// wrapProduceErr passes context errors through untouched.
func wrapProduceErr(topic string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("kafka publish to %q: %w", topic, errors.Join(berr.ErrPublishFailed, err))
}
