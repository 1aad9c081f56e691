package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/next-trace/scg-recommender/agents"
)

// Request is one inbound recommendation request.
type Request struct {
	UserID   string
	SeedItem string
	Category string
	Query    string
	Count    int
	Region   string
}

// EnrichedItem is a candidate merged with its availability breakdown.
type EnrichedItem struct {
	agents.Candidate

	Providers agents.Breakdown `json:"providers"`
}

// Result is the successful pipeline outcome. Movies keep the recommender's order.
type Result struct {
	Status agents.Status  `json:"status"`
	Intent agents.Intent  `json:"-"`
	Movies []EnrichedItem `json:"movies"`
}

// Pipeline stage names used in client errors.
const (
	StageIntent       = "intent"
	StageRecommend    = "recommend"
	StageAvailability = "availability"
)

// RequestError is a client error: a stage rejected the request.
type RequestError struct {
	Stage  string
	Code   string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s stage rejected request: %s", e.Stage, e.Reason)
}

// IsClientError reports whether err is (or wraps) a RequestError.
func IsClientError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// EnrichmentPolicy selects how a failed availability lookup affects the request.
type EnrichmentPolicy string

const (
	// FailFast fails the whole request on the first failed lookup and cancels the rest.
	FailFast EnrichmentPolicy = "fail_fast"
	// Degrade keeps the request and reports an empty breakdown for the failed item.
	Degrade EnrichmentPolicy = "degrade"
)

// ParsePolicy maps a config value to a policy; "" means FailFast.
func ParsePolicy(s string) (EnrichmentPolicy, error) {
	switch EnrichmentPolicy(s) {
	case "", FailFast:
		return FailFast, nil
	case Degrade:
		return Degrade, nil
	default:
		return "", fmt.Errorf("unknown enrichment policy %q", s)
	}
}

// Enrichment outcomes reported to observers.
const (
	EnrichOK       = "ok"
	EnrichDegraded = "degraded"
	EnrichFailed   = "failed"
)

// EnrichmentObserver receives one observation per availability lookup.
type EnrichmentObserver interface {
	ObserveEnrichment(outcome string)
}

// TopicRecommendationServed is the default topic for served recommendations.
const TopicRecommendationServed = "recommendations.served"

// RecommendationServed is published after a successful request.
type RecommendationServed struct {
	ID        string        `json:"id"`
	RequestID string        `json:"request_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	Intent    agents.Intent `json:"intent"`
	ItemIDs   []int64       `json:"item_ids"`
	ServedAt  time.Time     `json:"served_at"`

	topic string
}

// Topic implements bus.IntegrationEvent.
func (e RecommendationServed) Topic() string {
	if e.topic == "" {
		return TopicRecommendationServed
	}

	return e.topic
}
