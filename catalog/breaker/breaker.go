// Package breaker decorates a catalog.Provider with a circuit breaker so a failing
// catalog is shed quickly instead of being hammered by every enrichment lookup.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/next-trace/scg-recommender/catalog"
)

// Settings tunes the breaker. Zero values fall back to the defaults below.
type Settings struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MinRequests before the failure ratio is considered.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// StateObserver receives state transitions.
type StateObserver interface {
	ObserveBreakerState(name string, state float64)
}

// Provider wraps another catalog.Provider with a shared breaker.
type Provider struct {
	next   catalog.Provider
	cb     *gobreaker.CircuitBreaker[any]
	name   string
	logger *slog.Logger
}

var _ catalog.Provider = (*Provider)(nil)

// New wraps next. obs and logger may be nil.
func New(next catalog.Provider, s Settings, obs StateObserver, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if s.Name == "" {
		s.Name = "catalog"
	}

	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}

	if s.Interval <= 0 {
		s.Interval = time.Minute
	}

	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}

	if s.MinRequests == 0 {
		s.MinRequests = 10
	}

	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}

	if obs != nil {
		obs.ObserveBreakerState(s.Name, stateToFloat(gobreaker.StateClosed))
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}

			ratio := float64(counts.TotalFailures) / float64(counts.Requests)

			return ratio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog breaker state change", "breaker", name, "from", from.String(), "to", to.String())

			if obs != nil {
				obs.ObserveBreakerState(name, stateToFloat(to))
			}
		},
		// Caller cancellation says nothing about catalog health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Provider{next: next, cb: cb, name: s.Name, logger: logger}
}

// State reports the current breaker state.
func (p *Provider) State() gobreaker.State { return p.cb.State() }

func execute[T any](p *Provider, op string, fn func() (T, error)) (T, error) {
	var zero T

	res, err := p.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, catalog.TransportError(op, fmt.Errorf("breaker %s: %w", p.name, err))
		}

		return zero, err
	}

	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("breaker %s: unexpected result type %T", p.name, res)
	}

	return typed, nil
}

func (p *Provider) SearchByText(ctx context.Context, query string, page int) (catalog.Page, error) {
	return execute(p, catalog.OpSearch, func() (catalog.Page, error) { return p.next.SearchByText(ctx, query, page) })
}

func (p *Provider) GetDetails(ctx context.Context, id int64) (catalog.Details, error) {
	return execute(p, catalog.OpDetails, func() (catalog.Details, error) { return p.next.GetDetails(ctx, id) })
}

func (p *Provider) GetSimilar(ctx context.Context, id int64, page int) (catalog.Page, error) {
	return execute(p, catalog.OpSimilar, func() (catalog.Page, error) { return p.next.GetSimilar(ctx, id, page) })
}

func (p *Provider) DiscoverByCategory(ctx context.Context, ids []int64, sortBy string, page int) (catalog.Page, error) {
	return execute(p, catalog.OpDiscover, func() (catalog.Page, error) {
		return p.next.DiscoverByCategory(ctx, ids, sortBy, page)
	})
}

func (p *Provider) GetAvailability(ctx context.Context, id int64) (catalog.Availability, error) {
	return execute(p, catalog.OpAvailability, func() (catalog.Availability, error) {
		return p.next.GetAvailability(ctx, id)
	})
}

func (p *Provider) GetCategoryMap(ctx context.Context) (catalog.CategoryMap, error) {
	return execute(p, catalog.OpCategories, func() (catalog.CategoryMap, error) { return p.next.GetCategoryMap(ctx) })
}

// Close closes the wrapped provider when it holds resources.
func (p *Provider) Close() error {
	if c, ok := p.next.(interface{ Close() error }); ok {
		return c.Close()
	}

	return nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
