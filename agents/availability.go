package agents

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/next-trace/scg-recommender/catalog"
)

// ProviderOffer is one service offering an item.
type ProviderOffer struct {
	ProviderID      int64  `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	DisplayPriority *int   `json:"display_priority"`
}

// Breakdown lists offers per monetization category. All three slices are always
// non-nil so the JSON form always carries the flatrate, rent and buy keys.
type Breakdown struct {
	Flatrate []ProviderOffer `json:"flatrate"`
	Rent     []ProviderOffer `json:"rent"`
	Buy      []ProviderOffer `json:"buy"`
}

// EmptyBreakdown returns a breakdown with three empty categories.
func EmptyBreakdown() Breakdown {
	return Breakdown{Flatrate: []ProviderOffer{}, Rent: []ProviderOffer{}, Buy: []ProviderOffer{}}
}

// BreakdownFrom maps a region's offers; missing categories become empty.
func BreakdownFrom(r catalog.RegionAvailability) Breakdown {
	return Breakdown{Flatrate: offers(r.Flatrate), Rent: offers(r.Rent), Buy: offers(r.Buy)}
}

func offers(in []catalog.Offer) []ProviderOffer {
	out := make([]ProviderOffer, len(in))
	for i, o := range in {
		out[i] = ProviderOffer{ProviderID: o.ProviderID, ProviderName: o.ProviderName, DisplayPriority: o.DisplayPriority}
	}

	return out
}

// AvailabilityRequest asks where an item can be watched in a region.
type AvailabilityRequest struct {
	ItemID int64
	Region string
}

// AvailabilityReply carries the breakdown for the requested region. When the
// catalog has no data for the region RegionFound is false and the wire form is
// "providers": [] rather than an empty breakdown.
type AvailabilityReply struct {
	Result
	Region      string
	RegionFound bool
	Providers   Breakdown
}

// Offers returns the offers, or an empty breakdown when there are none to report.
func (r AvailabilityReply) Offers() Breakdown {
	if !r.OK() || !r.RegionFound {
		return EmptyBreakdown()
	}

	return r.Providers
}

func (r AvailabilityReply) MarshalJSON() ([]byte, error) {
	if !r.OK() {
		return json.Marshal(r.Result)
	}

	var providers any = []ProviderOffer{}
	if r.RegionFound {
		providers = r.Providers
	}

	return json.Marshal(struct {
		Status    Status `json:"status"`
		Providers any    `json:"providers"`
	}{Status: r.Status, Providers: providers})
}

// AvailabilityHandler looks up per-region offers for one item.
type AvailabilityHandler struct {
	Catalog       catalog.Provider
	DefaultRegion string
}

func (a AvailabilityHandler) Handle(ctx context.Context, req AvailabilityRequest) (AvailabilityReply, error) {
	if req.ItemID <= 0 {
		return AvailabilityReply{Result: reject(CodeMissingItemID, "missing movie_id")}, nil
	}

	region := regionOr(req.Region, a.DefaultRegion)

	avail, err := a.Catalog.GetAvailability(ctx, req.ItemID)
	if err != nil {
		return AvailabilityReply{}, fmt.Errorf("availability %d/%s: %w", req.ItemID, region, err)
	}

	// a region entry with nothing in it reads the same as no entry
	r, ok := avail.Region(region)
	if !ok || r.Empty() {
		return AvailabilityReply{Result: okResult(), Region: region}, nil
	}

	return AvailabilityReply{Result: okResult(), Region: region, RegionFound: true, Providers: BreakdownFrom(r)}, nil
}
