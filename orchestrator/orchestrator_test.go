package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/next-trace/scg-recommender/agents"
	"github.com/next-trace/scg-recommender/catalog"
	"github.com/next-trace/scg-recommender/catalog/inmemory"
	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
	"github.com/next-trace/scg-recommender/ids"
	"github.com/next-trace/scg-recommender/orchestrator"
	"github.com/next-trace/scg-recommender/servicebus"
)

// fakes

type countingObserver struct {
	mu  sync.Mutex
	got map[string]int
}

func (c *countingObserver) ObserveEnrichment(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.got == nil {
		c.got = map[string]int{}
	}

	c.got[outcome]++
}

type fakePub struct {
	mu     sync.Mutex
	events []cbus.IntegrationEvent
	opts   []cbus.PublishOptions
	err    error
}

func (f *fakePub) PublishIntegration(_ context.Context, e cbus.IntegrationEvent, opts cbus.PublishOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, e)
	f.opts = append(f.opts, opts)

	return f.err
}

func newPipeline(t *testing.T, c catalog.Provider, opts ...orchestrator.Option) (*orchestrator.Orchestrator, *servicebus.Bus) {
	t.Helper()

	b := servicebus.New(nil, nil)
	if err := agents.RegisterAll(b, c, "US"); err != nil {
		t.Fatalf("register: %v", err)
	}

	return orchestrator.New(b, opts...), b
}

func item(id int64, title string) catalog.Item { return catalog.Item{ID: id, Title: title} }

func TestRecommend_QueryEndToEnd(t *testing.T) {
	o, _ := newPipeline(t, inmemory.Demo())

	res, err := o.Recommend(t.Context(), orchestrator.Request{Query: "Batman", Count: 2, Region: "US"})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if res.Status != agents.StatusOK || len(res.Movies) != 2 {
		t.Fatalf("result: %+v", res)
	}

	if res.Movies[0].ID != 268 || res.Movies[1].ID != 364 {
		t.Fatalf("order: %+v", res.Movies)
	}

	for _, m := range res.Movies {
		if m.Providers.Flatrate == nil || m.Providers.Rent == nil || m.Providers.Buy == nil {
			t.Fatalf("breakdown keys missing for %d: %+v", m.ID, m.Providers)
		}
	}

	if res.Movies[0].Providers.Flatrate[0].ProviderName != "Max" {
		t.Fatalf("providers: %+v", res.Movies[0].Providers)
	}

	if res.Intent.Target != (agents.Query{Text: "Batman"}) || res.Intent.Count != 2 {
		t.Fatalf("intent: %+v", res.Intent)
	}
}

func TestRecommend_PopularDefaults(t *testing.T) {
	o, _ := newPipeline(t, inmemory.Demo())

	res, err := o.Recommend(t.Context(), orchestrator.Request{})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if len(res.Movies) != agents.DefaultCount || res.Intent.Region != "US" {
		t.Fatalf("defaults: %d movies, intent %+v", len(res.Movies), res.Intent)
	}

	if _, ok := res.Intent.Target.(agents.Popular); !ok {
		t.Fatalf("target: %#v", res.Intent.Target)
	}
}

func TestRecommend_FanInPreservesOrder(t *testing.T) {
	c := inmemory.New().
		AddItems(item(1, "A"), item(2, "B"), item(3, "C")).
		SetSearch("abc", 1, 2, 3).
		SetAvailabilityDelay(1, 80*time.Millisecond).
		SetAvailabilityDelay(2, 40*time.Millisecond)

	o, _ := newPipeline(t, c)

	res, err := o.Recommend(t.Context(), orchestrator.Request{Query: "abc", Count: 3})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	got := []int64{res.Movies[0].ID, res.Movies[1].ID, res.Movies[2].ID}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("fan-in order = %v, want [1 2 3]", got)
	}
}

func TestRecommend_LookupsRunConcurrently(t *testing.T) {
	c := inmemory.New()
	for id := int64(1); id <= 5; id++ {
		c.AddItems(item(id, "M")).SetAvailabilityDelay(id, 100*time.Millisecond)
	}

	c.SetPopular(1, 2, 3, 4, 5)

	o, _ := newPipeline(t, c)

	start := time.Now()
	if _, err := o.Recommend(t.Context(), orchestrator.Request{Count: 5}); err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if elapsed := time.Since(start); elapsed > 350*time.Millisecond {
		t.Fatalf("lookups look sequential: %v", elapsed)
	}
}

func TestRecommend_UnknownGenreIsClientError(t *testing.T) {
	c := inmemory.Demo()
	o, _ := newPipeline(t, c)

	_, err := o.Recommend(t.Context(), orchestrator.Request{Category: "action"})
	if !orchestrator.IsClientError(err) {
		t.Fatalf("expected client error, got %v", err)
	}

	var re *orchestrator.RequestError
	if !errors.As(err, &re) || re.Stage != orchestrator.StageRecommend || re.Reason != "unknown genre 'action'" || re.Code != agents.CodeUnknownCategory {
		t.Fatalf("request error: %#v", re)
	}

	if c.Calls(catalog.OpAvailability) != 0 {
		t.Fatal("no availability lookup may run after a rejected recommendation")
	}
}

func TestRecommend_SeedNotFoundIsClientError(t *testing.T) {
	o, _ := newPipeline(t, inmemory.Demo())

	_, err := o.Recommend(t.Context(), orchestrator.Request{SeedItem: "Nothing Like It"})

	var re *orchestrator.RequestError
	if !errors.As(err, &re) || re.Reason != "seed movie not found" {
		t.Fatalf("expected seed-not-found, got %v", err)
	}
}

func TestRecommend_RejectedIntentIsBadIntent(t *testing.T) {
	o, b := newPipeline(t, inmemory.Demo())

	// replace the intent handler with one that rejects
	_ = b.Register(agents.UserIntentAgent, cbus.HandlerFunc(func(context.Context, any) (any, error) {
		return agents.IntentReply{Result: agents.Result{Status: agents.StatusError, Code: "nope"}}, nil
	}))

	_, err := o.Recommend(t.Context(), orchestrator.Request{Query: "x"})

	var re *orchestrator.RequestError
	if !errors.As(err, &re) || re.Stage != orchestrator.StageIntent || re.Reason != "bad intent" {
		t.Fatalf("expected bad intent, got %v", err)
	}
}

func TestRecommend_MissingHandlerIsInternal(t *testing.T) {
	o := orchestrator.New(servicebus.New(nil, nil))

	_, err := o.Recommend(t.Context(), orchestrator.Request{Query: "x"})
	if !errors.Is(err, berr.ErrUnknownHandler) || orchestrator.IsClientError(err) {
		t.Fatalf("expected internal unknown-handler error, got %v", err)
	}
}

func TestRecommend_FailFastAbortsRequest(t *testing.T) {
	boom := errors.New("provider down")
	c := inmemory.New().
		AddItems(item(1, "A"), item(2, "B"), item(3, "C")).
		SetPopular(1, 2, 3).
		FailAvailability(2, boom).
		SetAvailabilityDelay(3, 2*time.Second)

	obs := &countingObserver{}
	o, _ := newPipeline(t, c, orchestrator.WithObserver(obs))

	start := time.Now()

	_, err := o.Recommend(t.Context(), orchestrator.Request{Count: 3})
	if !errors.Is(err, catalog.ErrTransport) || !errors.Is(err, boom) {
		t.Fatalf("expected transport failure, got %v", err)
	}

	if orchestrator.IsClientError(err) {
		t.Fatal("enrichment failures are not client errors")
	}

	if time.Since(start) > time.Second {
		t.Fatal("remaining lookups were not cancelled")
	}

	if obs.got[orchestrator.EnrichFailed] < 1 {
		t.Fatalf("observations: %v", obs.got)
	}
}

func TestRecommend_DegradeServesEmptyBreakdown(t *testing.T) {
	c := inmemory.Demo().FailAvailability(364, errors.New("timeout"))
	obs := &countingObserver{}
	o, _ := newPipeline(t, c, orchestrator.WithPolicy(orchestrator.Degrade), orchestrator.WithObserver(obs))

	res, err := o.Recommend(t.Context(), orchestrator.Request{Query: "Batman", Count: 3})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}

	if len(res.Movies) != 3 || res.Movies[1].ID != 364 {
		t.Fatalf("movies: %+v", res.Movies)
	}

	failed := res.Movies[1].Providers
	if failed.Flatrate == nil || len(failed.Flatrate)+len(failed.Rent)+len(failed.Buy) != 0 {
		t.Fatalf("degraded item must have an empty breakdown: %+v", failed)
	}

	if len(res.Movies[0].Providers.Flatrate) != 1 {
		t.Fatalf("healthy items keep their offers: %+v", res.Movies[0].Providers)
	}

	if obs.got[orchestrator.EnrichDegraded] != 1 || obs.got[orchestrator.EnrichOK] != 2 {
		t.Fatalf("observations: %v", obs.got)
	}
}

func TestRecommend_PublishesServedEvent(t *testing.T) {
	pub := &fakePub{}
	o, _ := newPipeline(t, inmemory.Demo(), orchestrator.WithEvents(pub, ""))

	ctx := ids.WithRequestID(t.Context(), "req-1")
	if _, err := o.Recommend(ctx, orchestrator.Request{UserID: "u-9", Query: "Batman", Count: 2}); err != nil {
		t.Fatalf("recommend: %v", err)
	}

	o.Drain()

	if len(pub.events) != 1 {
		t.Fatalf("events: %d", len(pub.events))
	}

	evt, ok := pub.events[0].(orchestrator.RecommendationServed)
	if !ok {
		t.Fatalf("event type %T", pub.events[0])
	}

	if evt.Topic() != orchestrator.TopicRecommendationServed || evt.RequestID != "req-1" || evt.UserID != "u-9" {
		t.Fatalf("event: %+v", evt)
	}

	if len(evt.ItemIDs) != 2 || evt.ItemIDs[0] != 268 || !ids.Valid(evt.ID) {
		t.Fatalf("event payload: %+v", evt)
	}

	if pub.opts[0].Key != "u-9" || pub.opts[0].Headers["x-request-id"] != "req-1" {
		t.Fatalf("publish options: %+v", pub.opts[0])
	}
}

func TestRecommend_PublishFailureDoesNotFailRequest(t *testing.T) {
	pub := &fakePub{err: berr.ErrPublishFailed}
	o, _ := newPipeline(t, inmemory.Demo(), orchestrator.WithEvents(pub, "custom.topic"))

	if _, err := o.Recommend(t.Context(), orchestrator.Request{Query: "Batman"}); err != nil {
		t.Fatalf("recommend: %v", err)
	}

	o.Drain()

	if pub.events[0].Topic() != "custom.topic" {
		t.Fatalf("topic = %s", pub.events[0].Topic())
	}

	// no events for rejected requests
	_, _ = o.Recommend(t.Context(), orchestrator.Request{Category: "action"})
	o.Drain()

	if len(pub.events) != 1 {
		t.Fatalf("events: %d", len(pub.events))
	}
}

// stuckPub blocks every publish until its context ends, like a sender waiting
// on a broker that never comes back.
type stuckPub struct {
	started chan struct{}
	ended   chan error
}

func (p *stuckPub) PublishIntegration(ctx context.Context, _ cbus.IntegrationEvent, _ cbus.PublishOptions) error {
	close(p.started)
	<-ctx.Done()
	p.ended <- ctx.Err()

	return ctx.Err()
}

func TestRecommend_StuckPublisherDoesNotHoldRequest(t *testing.T) {
	pub := &stuckPub{started: make(chan struct{}), ended: make(chan error, 1)}
	o, _ := newPipeline(t, inmemory.Demo(),
		orchestrator.WithEvents(pub, ""),
		orchestrator.WithPublishTimeout(50*time.Millisecond),
	)

	// no deadline, as with an HTTP request context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := o.Recommend(ctx, orchestrator.Request{Query: "Batman", Count: 2})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("recommend: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("recommend blocked on the event publisher")
	}

	<-pub.started

	// the request finishing must not cancel the publish; only the timeout ends it
	cancel()

	select {
	case err := <-pub.ended:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("publish ended with %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("publish timeout never fired")
	}

	o.Drain()
}

func TestWhereToWatch(t *testing.T) {
	o, _ := newPipeline(t, inmemory.Demo())

	ar, err := o.WhereToWatch(t.Context(), 155, "GB")
	if err != nil || !ar.RegionFound || ar.Offers().Flatrate[0].ProviderName != "Netflix" {
		t.Fatalf("GB: %+v %v", ar, err)
	}

	ar, err = o.WhereToWatch(t.Context(), 155, "FR")
	if err != nil || ar.RegionFound {
		t.Fatalf("FR: %+v %v", ar, err)
	}

	_, err = o.WhereToWatch(t.Context(), 0, "US")

	var re *orchestrator.RequestError
	if !errors.As(err, &re) || re.Code != agents.CodeMissingItemID {
		t.Fatalf("missing id: %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]orchestrator.EnrichmentPolicy{"": orchestrator.FailFast, "fail_fast": orchestrator.FailFast, "degrade": orchestrator.Degrade} {
		got, err := orchestrator.ParsePolicy(in)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}

	if _, err := orchestrator.ParsePolicy("retry"); err == nil {
		t.Fatal("expected error")
	}
}
