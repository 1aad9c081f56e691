// Package orchestrator drives one request through intent, recommendation and
// availability enrichment, talking to every stage through the bus.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/next-trace/scg-recommender/agents"
	cbus "github.com/next-trace/scg-recommender/contract/bus"
	"github.com/next-trace/scg-recommender/ids"
	"github.com/next-trace/scg-recommender/servicebus"
)

// Orchestrator is stateless between requests and safe for concurrent use.
type Orchestrator struct {
	bus      cbus.Dispatcher
	logger   *slog.Logger
	policy   EnrichmentPolicy
	observer EnrichmentObserver

	events         cbus.EventPublisher
	topic          string
	publishTimeout time.Duration
	inflight       sync.WaitGroup
	now            func() time.Time
}

// DefaultPublishTimeout bounds each RecommendationServed publish.
const DefaultPublishTimeout = 5 * time.Second

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPolicy sets the enrichment failure policy.
func WithPolicy(p EnrichmentPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithObserver reports enrichment outcomes.
func WithObserver(obs EnrichmentObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithEvents publishes RecommendationServed on topic after each successful request.
// An empty topic uses TopicRecommendationServed.
func WithEvents(pub cbus.EventPublisher, topic string) Option {
	return func(o *Orchestrator) {
		o.events = pub
		o.topic = topic
	}
}

// WithPublishTimeout bounds each event publish. Non-positive values keep the default.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.publishTimeout = d
		}
	}
}

// New builds an Orchestrator over d.
func New(d cbus.Dispatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bus:    d,
		logger: slog.New(slog.DiscardHandler),
		policy: FailFast,
		now:    time.Now,

		publishTimeout: DefaultPublishTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Recommend runs the three stages. A stage rejection returns *RequestError; any
// other error is internal.
func (o *Orchestrator) Recommend(ctx context.Context, req Request) (Result, error) {
	ir, err := servicebus.Send[agents.IntentRequest, agents.IntentReply](ctx, o.bus, agents.UserIntentAgent, agents.IntentRequest{
		SeedItem: req.SeedItem,
		Category: req.Category,
		Query:    req.Query,
		Count:    req.Count,
		Region:   req.Region,
	})
	if err != nil {
		return Result{}, fmt.Errorf("intent stage: %w", err)
	}

	if !ir.OK() {
		return Result{}, &RequestError{Stage: StageIntent, Code: ir.Code, Reason: "bad intent"}
	}

	intent := ir.Intent

	rr, err := servicebus.Send[agents.RecommendRequest, agents.RecommendReply](ctx, o.bus, agents.RecommenderAgent, agents.RecommendRequest{Intent: intent})
	if err != nil {
		return Result{}, fmt.Errorf("recommend stage: %w", err)
	}

	if !rr.OK() {
		o.logger.InfoContext(ctx, "recommendation rejected", "code", rr.Code, "reason", rr.Reason)
		return Result{}, &RequestError{Stage: StageRecommend, Code: rr.Code, Reason: rr.Reason}
	}

	movies, err := o.enrich(ctx, rr.Movies, intent.Region)
	if err != nil {
		return Result{}, fmt.Errorf("availability stage: %w", err)
	}

	res := Result{Status: agents.StatusOK, Intent: intent, Movies: movies}
	o.publishServed(ctx, req.UserID, res)

	return res, nil
}

// enrich looks up availability for every candidate concurrently and joins the
// results back in candidate order.
func (o *Orchestrator) enrich(ctx context.Context, movies []agents.Candidate, region string) ([]EnrichedItem, error) {
	slots := make([]EnrichedItem, len(movies))

	g, gctx := errgroup.WithContext(ctx)

	for i, m := range movies {
		g.Go(func() error {
			ar, err := servicebus.Send[agents.AvailabilityRequest, agents.AvailabilityReply](gctx, o.bus, agents.AvailabilityAgent, agents.AvailabilityRequest{
				ItemID: m.ID,
				Region: region,
			})
			if err != nil {
				if o.policy == Degrade && ctx.Err() == nil {
					o.observe(EnrichDegraded)
					o.logger.WarnContext(ctx, "availability lookup failed, serving empty breakdown", "item_id", m.ID, "region", region, "error", err)
					slots[i] = EnrichedItem{Candidate: m, Providers: agents.EmptyBreakdown()}

					return nil
				}

				o.observe(EnrichFailed)

				return fmt.Errorf("item %d: %w", m.ID, err)
			}

			o.observe(EnrichOK)
			slots[i] = EnrichedItem{Candidate: m, Providers: ar.Offers()}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slots, nil
}

// WhereToWatch looks up availability for one item directly, bypassing intent and recommendation.
func (o *Orchestrator) WhereToWatch(ctx context.Context, itemID int64, region string) (agents.AvailabilityReply, error) {
	ar, err := servicebus.Send[agents.AvailabilityRequest, agents.AvailabilityReply](ctx, o.bus, agents.AvailabilityAgent, agents.AvailabilityRequest{
		ItemID: itemID,
		Region: region,
	})
	if err != nil {
		return agents.AvailabilityReply{}, fmt.Errorf("availability: %w", err)
	}

	if !ar.OK() {
		return ar, &RequestError{Stage: StageAvailability, Code: ar.Code, Reason: ar.Reason}
	}

	return ar, nil
}

func (o *Orchestrator) observe(outcome string) {
	if o.observer != nil {
		o.observer.ObserveEnrichment(outcome)
	}
}

func (o *Orchestrator) publishServed(ctx context.Context, userID string, res Result) {
	if o.events == nil {
		return
	}

	itemIDs := make([]int64, len(res.Movies))
	for i, m := range res.Movies {
		itemIDs[i] = m.ID
	}

	reqID := ids.RequestID(ctx)
	evt := RecommendationServed{
		ID:        ids.New(),
		RequestID: reqID,
		UserID:    userID,
		Intent:    res.Intent,
		ItemIDs:   itemIDs,
		ServedAt:  o.now().UTC(),
		topic:     o.topic,
	}

	key := userID
	if key == "" {
		key = reqID
	}

	opts := cbus.PublishOptions{Key: key, Headers: map[string]string{"x-request-id": reqID}}

	// The request must not wait on the broker, and must not cancel the publish either.
	detached := context.WithoutCancel(ctx)

	o.inflight.Go(func() {
		pctx, cancel := context.WithTimeout(detached, o.publishTimeout)
		defer cancel()

		if err := o.events.PublishIntegration(pctx, evt, opts); err != nil {
			o.logger.ErrorContext(pctx, "publish recommendation served", "topic", evt.Topic(), "error", err)
		}
	})
}

// Drain waits for in-flight event publishes. Each one is bounded by the
// publish timeout, so Drain returns within that bound once requests stop.
func (o *Orchestrator) Drain() {
	o.inflight.Wait()
}
