// Package memory wires the full pipeline in process: a bus with the three agents,
// an in-memory event recorder and an orchestrator. It has no metrics or broker.
package memory

import (
	"io"

	"github.com/next-trace/scg-recommender/adapters/inmemory"
	"github.com/next-trace/scg-recommender/agents"
	"github.com/next-trace/scg-recommender/catalog"
	"github.com/next-trace/scg-recommender/orchestrator"
	"github.com/next-trace/scg-recommender/servicebus"
)

// System is an in-process recommender.
type System struct {
	Bus          *servicebus.Bus
	Events       *inmemory.Publisher
	Orchestrator *orchestrator.Orchestrator
}

// New builds a System over provider with region as the default watch region.
// The cleanup waits for pending events, closes the bus and, when it is an io.Closer, the provider.
func New(provider catalog.Provider, region string, opts ...orchestrator.Option) (*System, func(), error) {
	events := inmemory.New()
	sb := servicebus.New(events, nil)

	if err := agents.RegisterAll(sb, provider, region); err != nil {
		return nil, nil, err
	}

	opts = append([]orchestrator.Option{orchestrator.WithEvents(sb, orchestrator.TopicRecommendationServed)}, opts...)

	sys := &System{
		Bus:          sb,
		Events:       events,
		Orchestrator: orchestrator.New(sb, opts...),
	}

	cleanup := func() {
		sys.Orchestrator.Drain()
		_ = sb.Close()

		if c, ok := provider.(io.Closer); ok {
			_ = c.Close()
		}
	}

	return sys, cleanup, nil
}
