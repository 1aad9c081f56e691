package catalog

import (
	"context"
	"time"
)

// Provider is the catalog contract. Every operation may fail with an error that
// matches ErrTransport. Implementations must be safe for concurrent use.
type Provider interface {
	SearchByText(ctx context.Context, query string, page int) (Page, error)
	GetDetails(ctx context.Context, id int64) (Details, error)
	GetSimilar(ctx context.Context, id int64, page int) (Page, error)
	DiscoverByCategory(ctx context.Context, categoryIDs []int64, sortBy string, page int) (Page, error)
	GetAvailability(ctx context.Context, id int64) (Availability, error)
	GetCategoryMap(ctx context.Context) (CategoryMap, error)
}

// Operation names used for errors and metrics labels.
const (
	OpSearch       = "search"
	OpDetails      = "details"
	OpSimilar      = "similar"
	OpDiscover     = "discover"
	OpAvailability = "availability"
	OpCategories   = "categories"
)

// RequestObserver receives one observation per outbound catalog call.
type RequestObserver interface {
	ObserveCatalogRequest(op, outcome string, elapsed time.Duration)
}
