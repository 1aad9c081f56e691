package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/next-trace/scg-recommender/catalog"
)

// Candidate is one recommended item. Optional fields are nil when the catalog omits them.
type Candidate struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Overview    *string  `json:"overview"`
	ReleaseDate *string  `json:"release_date"`
	Popularity  *float64 `json:"popularity"`
}

// CandidateFrom copies the recommendation fields of a catalog item.
func CandidateFrom(it catalog.Item) Candidate {
	return Candidate{
		ID:          it.ID,
		Title:       it.Title,
		Overview:    it.Overview,
		ReleaseDate: it.ReleaseDate,
		Popularity:  it.Popularity,
	}
}

// RecommendRequest asks for candidates for an intent.
type RecommendRequest struct {
	Intent Intent
}

// RecommendReply carries at most Intent.Count candidates in catalog order.
type RecommendReply struct {
	Result
	Movies []Candidate `json:"movies,omitempty"`
}

// RecommendHandler resolves an intent against the catalog.
type RecommendHandler struct {
	Catalog catalog.Provider
}

func (a RecommendHandler) Handle(ctx context.Context, req RecommendRequest) (RecommendReply, error) {
	count := req.Intent.Count
	if count <= 0 {
		count = DefaultCount
	}

	var (
		page catalog.Page
		err  error
	)

	switch t := req.Intent.Target.(type) {
	case SeedItem:
		return a.similarTo(ctx, t.Title, count)
	case Category:
		return a.inCategory(ctx, t.Name, count)
	case Query:
		page, err = a.Catalog.SearchByText(ctx, t.Text, 1)
	case Popular:
		page, err = a.Catalog.DiscoverByCategory(ctx, nil, catalog.SortPopularityDesc, 1)
	default:
		return RecommendReply{}, fmt.Errorf("recommend: unsupported intent target %T", req.Intent.Target)
	}

	if err != nil {
		return RecommendReply{}, fmt.Errorf("recommend %s: %w", req.Intent.Target.Kind(), err)
	}

	return accepted(page.Results, count), nil
}

func (a RecommendHandler) similarTo(ctx context.Context, title string, count int) (RecommendReply, error) {
	found, err := a.Catalog.SearchByText(ctx, title, 1)
	if err != nil {
		return RecommendReply{}, fmt.Errorf("recommend seed search: %w", err)
	}

	if len(found.Results) == 0 {
		return RecommendReply{Result: reject(CodeSeedNotFound, "seed movie not found")}, nil
	}

	similar, err := a.Catalog.GetSimilar(ctx, found.Results[0].ID, 1)
	if err != nil {
		return RecommendReply{}, fmt.Errorf("recommend similar to %d: %w", found.Results[0].ID, err)
	}

	return accepted(similar.Results, count), nil
}

func (a RecommendHandler) inCategory(ctx context.Context, name string, count int) (RecommendReply, error) {
	categories, err := a.Catalog.GetCategoryMap(ctx)
	if err != nil {
		return RecommendReply{}, fmt.Errorf("recommend categories: %w", err)
	}

	name = strings.ToLower(name)

	id, ok := categories[name]
	if !ok {
		return RecommendReply{Result: reject(CodeUnknownCategory, fmt.Sprintf("unknown genre '%s'", name))}, nil
	}

	page, err := a.Catalog.DiscoverByCategory(ctx, []int64{id}, catalog.SortPopularityDesc, 1)
	if err != nil {
		return RecommendReply{}, fmt.Errorf("recommend genre %q: %w", name, err)
	}

	return accepted(page.Results, count), nil
}

func accepted(items []catalog.Item, count int) RecommendReply {
	if len(items) > count {
		items = items[:count]
	}

	movies := make([]Candidate, len(items))
	for i, it := range items {
		movies[i] = CandidateFrom(it)
	}

	return RecommendReply{Result: okResult(), Movies: movies}
}
