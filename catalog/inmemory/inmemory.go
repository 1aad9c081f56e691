// Package inmemory provides a deterministic catalog.Provider for tests and demos.
// It supports per-item latency and injected failures.
package inmemory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/next-trace/scg-recommender/catalog"
)

// Catalog is a thread-safe in-memory catalog.Provider.
type Catalog struct {
	mu sync.RWMutex

	items        map[int64]catalog.Item
	order        []int64
	search       map[string][]int64
	similar      map[int64][]int64
	byCategory   map[int64][]int64
	popular      []int64
	categories   catalog.CategoryMap
	availability map[int64]catalog.Availability

	delays       map[int64]time.Duration
	opFailures   map[string]error
	itemFailures map[int64]error

	calls map[string]int
}

var _ catalog.Provider = (*Catalog)(nil)

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		items:        make(map[int64]catalog.Item),
		search:       make(map[string][]int64),
		similar:      make(map[int64][]int64),
		byCategory:   make(map[int64][]int64),
		categories:   make(catalog.CategoryMap),
		availability: make(map[int64]catalog.Availability),
		delays:       make(map[int64]time.Duration),
		opFailures:   make(map[string]error),
		itemFailures: make(map[int64]error),
		calls:        make(map[string]int),
	}
}

// AddItems stores items; insertion order is the fallback search order.
func (c *Catalog) AddItems(items ...catalog.Item) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, it := range items {
		if _, ok := c.items[it.ID]; !ok {
			c.order = append(c.order, it.ID)
		}

		c.items[it.ID] = it
	}

	return c
}

// SetSearch pins the result ids for a query (matched case-insensitively).
func (c *Catalog) SetSearch(query string, ids ...int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.search[strings.ToLower(query)] = ids

	return c
}

// SetSimilar sets the items similar to id.
func (c *Catalog) SetSimilar(id int64, ids ...int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.similar[id] = ids

	return c
}

// SetCategory registers a category by name and its items in popularity order.
func (c *Catalog) SetCategory(name string, categoryID int64, ids ...int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.categories[strings.ToLower(name)] = categoryID
	c.byCategory[categoryID] = ids

	return c
}

// SetPopular sets the unfiltered discovery order.
func (c *Catalog) SetPopular(ids ...int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.popular = ids

	return c
}

// SetAvailability sets the per-region offers for id.
func (c *Catalog) SetAvailability(id int64, regions map[string]catalog.RegionAvailability) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.availability[id] = catalog.Availability{ItemID: id, Regions: regions}

	return c
}

// SetAvailabilityDelay makes GetAvailability(id) take d (or until ctx is done).
func (c *Catalog) SetAvailabilityDelay(id int64, d time.Duration) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.delays[id] = d

	return c
}

// FailOp makes every call of op fail with err wrapped as a transport error.
func (c *Catalog) FailOp(op string, err error) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opFailures[op] = err

	return c
}

// FailAvailability makes GetAvailability(id) fail with err wrapped as a transport error.
func (c *Catalog) FailAvailability(id int64, err error) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.itemFailures[id] = err

	return c
}

// Calls reports how many times op was invoked.
func (c *Catalog) Calls(op string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.calls[op]
}

func (c *Catalog) enter(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls[op]++

	if err := c.opFailures[op]; err != nil {
		return catalog.TransportError(op, err)
	}

	return nil
}

func (c *Catalog) page(ids []int64) catalog.Page {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.Item, 0, len(ids))
	for _, id := range ids {
		if it, ok := c.items[id]; ok {
			out = append(out, it)
		}
	}

	return catalog.Page{Page: 1, TotalPages: 1, TotalResults: len(out), Results: out}
}

func (c *Catalog) SearchByText(_ context.Context, query string, _ int) (catalog.Page, error) {
	if err := c.enter(catalog.OpSearch); err != nil {
		return catalog.Page{}, err
	}

	key := strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	ids, pinned := c.search[key]
	if !pinned {
		for _, id := range c.order {
			if key != "" && strings.Contains(strings.ToLower(c.items[id].Title), key) {
				ids = append(ids, id)
			}
		}
	}
	c.mu.RUnlock()

	return c.page(ids), nil
}

func (c *Catalog) GetDetails(_ context.Context, id int64) (catalog.Details, error) {
	if err := c.enter(catalog.OpDetails); err != nil {
		return catalog.Details{}, err
	}

	c.mu.RLock()
	it, ok := c.items[id]
	c.mu.RUnlock()

	if !ok {
		return catalog.Details{}, &catalog.StatusError{Op: catalog.OpDetails, StatusCode: 404, Body: fmt.Sprintf("item %d not found", id)}
	}

	return catalog.Details{Item: it}, nil
}

func (c *Catalog) GetSimilar(_ context.Context, id int64, _ int) (catalog.Page, error) {
	if err := c.enter(catalog.OpSimilar); err != nil {
		return catalog.Page{}, err
	}

	c.mu.RLock()
	ids := c.similar[id]
	c.mu.RUnlock()

	return c.page(ids), nil
}

func (c *Catalog) DiscoverByCategory(_ context.Context, categoryIDs []int64, _ string, _ int) (catalog.Page, error) {
	if err := c.enter(catalog.OpDiscover); err != nil {
		return catalog.Page{}, err
	}

	c.mu.RLock()

	var ids []int64

	if len(categoryIDs) == 0 {
		ids = c.popular
	} else {
		for _, cid := range categoryIDs {
			for _, id := range c.byCategory[cid] {
				if !slices.Contains(ids, id) {
					ids = append(ids, id)
				}
			}
		}
	}
	c.mu.RUnlock()

	return c.page(ids), nil
}

func (c *Catalog) GetAvailability(ctx context.Context, id int64) (catalog.Availability, error) {
	if err := c.enter(catalog.OpAvailability); err != nil {
		return catalog.Availability{}, err
	}

	c.mu.RLock()
	delay := c.delays[id]
	failure := c.itemFailures[id]
	a, ok := c.availability[id]
	c.mu.RUnlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return catalog.Availability{}, catalog.TransportError(catalog.OpAvailability, ctx.Err())
		case <-t.C:
		}
	}

	if failure != nil {
		return catalog.Availability{}, catalog.TransportError(catalog.OpAvailability, failure)
	}

	if !ok {
		return catalog.Availability{ItemID: id, Regions: map[string]catalog.RegionAvailability{}}, nil
	}

	return a, nil
}

func (c *Catalog) GetCategoryMap(context.Context) (catalog.CategoryMap, error) {
	if err := c.enter(catalog.OpCategories); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(catalog.CategoryMap, len(c.categories))
	for k, v := range c.categories {
		out[k] = v
	}

	return out, nil
}
