package agents_test

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/next-trace/scg-recommender/agents"
	"github.com/next-trace/scg-recommender/catalog"
	"github.com/next-trace/scg-recommender/catalog/inmemory"
)

func TestAvailability_MissingItemID(t *testing.T) {
	h := agents.AvailabilityHandler{Catalog: inmemory.Demo(), DefaultRegion: "US"}

	for _, id := range []int64{0, -1} {
		reply, err := h.Handle(t.Context(), agents.AvailabilityRequest{ItemID: id})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}

		if reply.OK() || reply.Code != agents.CodeMissingItemID {
			t.Fatalf("id %d: %+v", id, reply)
		}
	}
}

func TestAvailability_BreakdownAlwaysHasThreeKeys(t *testing.T) {
	h := agents.AvailabilityHandler{Catalog: inmemory.Demo(), DefaultRegion: "US"}

	reply, err := h.Handle(t.Context(), agents.AvailabilityRequest{ItemID: 268})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !reply.OK() || !reply.RegionFound || reply.Region != "US" {
		t.Fatalf("reply: %+v", reply)
	}

	bd := reply.Offers()
	if len(bd.Flatrate) != 1 || len(bd.Rent) != 2 || bd.Buy == nil || len(bd.Buy) != 0 {
		t.Fatalf("breakdown: %+v", bd)
	}

	b, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var wire struct {
		Status    string                     `json:"status"`
		Providers map[string]json.RawMessage `json:"providers"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}

	for _, k := range []string{"flatrate", "rent", "buy"} {
		if _, ok := wire.Providers[k]; !ok {
			t.Fatalf("key %s missing in %s", k, b)
		}
	}

	if string(wire.Providers["buy"]) != "[]" {
		t.Fatalf("buy must be an empty list: %s", b)
	}
}

func TestAvailability_RegionAbsent(t *testing.T) {
	h := agents.AvailabilityHandler{Catalog: inmemory.Demo(), DefaultRegion: "US"}

	reply, err := h.Handle(t.Context(), agents.AvailabilityRequest{ItemID: 364, Region: "GB"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !reply.OK() || reply.RegionFound {
		t.Fatalf("reply: %+v", reply)
	}

	b, _ := json.Marshal(reply)
	if string(b) != `{"status":"ok","providers":[]}` {
		t.Fatalf("wire form: %s", b)
	}

	bd := reply.Offers()
	if bd.Flatrate == nil || bd.Rent == nil || bd.Buy == nil {
		t.Fatalf("empty breakdown must have three empty lists: %+v", bd)
	}
}

func TestAvailability_EmptyRegionEntryReadsAsAbsent(t *testing.T) {
	c := inmemory.Demo().SetAvailability(364, map[string]catalog.RegionAvailability{
		"US": {},
		"CA": {Link: "https://www.themoviedb.org/movie/364/watch?locale=CA"},
	})
	h := agents.AvailabilityHandler{Catalog: c, DefaultRegion: "US"}

	reply, err := h.Handle(t.Context(), agents.AvailabilityRequest{ItemID: 364})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	b, _ := json.Marshal(reply)
	if reply.RegionFound || string(b) != `{"status":"ok","providers":[]}` {
		t.Fatalf("empty US entry: %+v %s", reply, b)
	}

	// a link alone still counts as a present region
	reply, err = h.Handle(t.Context(), agents.AvailabilityRequest{ItemID: 364, Region: "CA"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if !reply.RegionFound || len(reply.Offers().Flatrate) != 0 {
		t.Fatalf("CA: %+v", reply)
	}
}

func TestAvailability_ErrorReplyJSON(t *testing.T) {
	h := agents.AvailabilityHandler{Catalog: inmemory.Demo()}

	reply, _ := h.Handle(t.Context(), agents.AvailabilityRequest{})
	b, _ := json.Marshal(reply)

	if string(b) != `{"status":"error","code":"missing_item_id","reason":"missing movie_id"}` {
		t.Fatalf("wire form: %s", b)
	}
}

func TestAvailability_TransportError(t *testing.T) {
	boom := errors.New("reset")
	h := agents.AvailabilityHandler{Catalog: inmemory.Demo().FailAvailability(268, boom), DefaultRegion: "US"}

	if _, err := h.Handle(t.Context(), agents.AvailabilityRequest{ItemID: 268}); !errors.Is(err, catalog.ErrTransport) || !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestEmptyBreakdownJSON(t *testing.T) {
	b, _ := json.Marshal(agents.EmptyBreakdown())
	if string(b) != `{"flatrate":[],"rent":[],"buy":[]}` {
		t.Fatalf("wire form: %s", b)
	}
}
