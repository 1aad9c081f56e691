package inmemory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/next-trace/scg-recommender/catalog"
	"github.com/next-trace/scg-recommender/catalog/inmemory"
)

func TestDemo_SearchSimilarDiscover(t *testing.T) {
	c := inmemory.Demo()

	p, err := c.SearchByText(t.Context(), "batman", 1)
	if err != nil || len(p.Results) != 4 || p.Results[0].ID != 268 {
		t.Fatalf("search: %+v %v", p, err)
	}

	// unpinned queries fall back to title matching
	p, _ = c.SearchByText(t.Context(), "knight", 1)
	if len(p.Results) != 1 || p.Results[0].ID != 155 {
		t.Fatalf("title match: %+v", p.Results)
	}

	p, _ = c.SearchByText(t.Context(), "zzzz", 1)
	if len(p.Results) != 0 {
		t.Fatalf("expected no results: %+v", p.Results)
	}

	p, _ = c.GetSimilar(t.Context(), 268, 1)
	if len(p.Results) != 5 || p.Results[0].Title != "Batman Returns" {
		t.Fatalf("similar: %+v", p.Results)
	}

	m, _ := c.GetCategoryMap(t.Context())
	if _, ok := m["action"]; ok {
		t.Fatal("demo has no action genre")
	}

	p, _ = c.DiscoverByCategory(t.Context(), []int64{m["comedy"]}, catalog.SortPopularityDesc, 1)
	if len(p.Results) != 2 || p.Results[0].ID != 120467 {
		t.Fatalf("comedy: %+v", p.Results)
	}

	p, _ = c.DiscoverByCategory(t.Context(), nil, catalog.SortPopularityDesc, 1)
	if len(p.Results) != 6 || p.Results[0].ID != 278 {
		t.Fatalf("popular: %+v", p.Results)
	}
}

func TestAvailability_DelayFailureAndMissing(t *testing.T) {
	boom := errors.New("boom")
	c := inmemory.New().
		AddItems(catalog.Item{ID: 1, Title: "A"}).
		SetAvailabilityDelay(1, time.Second).
		FailAvailability(2, boom)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	if _, err := c.GetAvailability(ctx, 1); !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, catalog.ErrTransport) {
		t.Fatalf("expected deadline transport error, got %v", err)
	}

	if _, err := c.GetAvailability(t.Context(), 2); !errors.Is(err, boom) || !errors.Is(err, catalog.ErrTransport) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	a, err := c.GetAvailability(t.Context(), 3)
	if err != nil || len(a.Regions) != 0 {
		t.Fatalf("missing item: %+v %v", a, err)
	}

	if got := c.Calls(catalog.OpAvailability); got != 3 {
		t.Fatalf("calls = %d", got)
	}
}

func TestFailOp(t *testing.T) {
	c := inmemory.Demo().FailOp(catalog.OpCategories, errors.New("down"))

	if _, err := c.GetCategoryMap(t.Context()); !errors.Is(err, catalog.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}

	if _, err := c.GetDetails(t.Context(), 99999); !errors.Is(err, catalog.ErrTransport) {
		t.Fatalf("unknown id must be a status error, got %v", err)
	}
}
