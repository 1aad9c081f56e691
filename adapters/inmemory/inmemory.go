// Package inmemory records integration events in process. It backs examples and
// tests that need to observe what the pipeline published.
package inmemory

import (
	"context"
	"maps"
	"sync"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
)

// Record is one published event with the routing it was published under.
type Record struct {
	Topic   string
	Key     string
	Headers map[string]string
	Event   cbus.IntegrationEvent
}

// Publisher is a thread-safe in-memory cbus.EventPublisher.
type Publisher struct {
	// Propagator injects trace context into each record's headers.
	Propagator cbus.HeaderPropagator

	mu          sync.Mutex
	records     []Record
	subscribers map[string][]func(Record)
}

var _ cbus.EventPublisher = (*Publisher)(nil)

// New creates an empty publisher.
func New() *Publisher { return &Publisher{subscribers: make(map[string][]func(Record))} }

func (p *Publisher) PublishIntegration(ctx context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	topic := e.Topic()
	if opts.TopicOverride != "" {
		topic = opts.TopicOverride
	}

	headers := make(map[string]string, len(opts.Headers))
	maps.Copy(headers, opts.Headers)

	if p.Propagator != nil {
		p.Propagator.Inject(ctx, headers)
	}

	rec := Record{Topic: topic, Key: opts.Key, Headers: headers, Event: e}

	p.mu.Lock()
	p.records = append(p.records, rec)
	subs := append([]func(Record){}, p.subscribers[topic]...)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(rec)
	}

	return nil
}

// Subscribe calls fn synchronously for every event later published on topic.
func (p *Publisher) Subscribe(topic string, fn func(Record)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.subscribers == nil {
		p.subscribers = make(map[string][]func(Record))
	}

	p.subscribers[topic] = append(p.subscribers[topic], fn)
}

// Records returns a copy of everything published so far, in publish order.
func (p *Publisher) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]Record(nil), p.records...)
}

// Reset drops recorded events. Subscribers are kept.
func (p *Publisher) Reset() {
	p.mu.Lock()
	p.records = nil
	p.mu.Unlock()
}
