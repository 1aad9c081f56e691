package agents

import (
	"errors"

	"github.com/next-trace/scg-recommender/catalog"
	"github.com/next-trace/scg-recommender/servicebus"
)

// RegisterAll registers the three pipeline handlers on b under their well-known names.
func RegisterAll(b *servicebus.Bus, provider catalog.Provider, defaultRegion string) error {
	return errors.Join(
		servicebus.Register[IntentRequest, IntentReply](b, UserIntentAgent, IntentHandler{DefaultRegion: defaultRegion}),
		servicebus.Register[RecommendRequest, RecommendReply](b, RecommenderAgent, RecommendHandler{Catalog: provider}),
		servicebus.Register[AvailabilityRequest, AvailabilityReply](b, AvailabilityAgent, AvailabilityHandler{Catalog: provider, DefaultRegion: defaultRegion}),
	)
}
