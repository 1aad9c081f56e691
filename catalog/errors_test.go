package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/next-trace/scg-recommender/catalog"
)

func TestTransportError(t *testing.T) {
	if catalog.TransportError("search", nil) != nil {
		t.Fatal("nil must stay nil")
	}

	err := catalog.TransportError("search", context.DeadlineExceeded)
	if !errors.Is(err, catalog.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("cause lost: %v", err)
	}

	// already classified errors are not wrapped twice
	if again := catalog.TransportError("similar", err); again != err {
		t.Fatalf("double wrap: %v", again)
	}
}

func TestStatusError(t *testing.T) {
	var err error = &catalog.StatusError{Op: "details", StatusCode: 404, Body: "nope"}

	if !errors.Is(err, catalog.ErrTransport) {
		t.Fatal("StatusError must match ErrTransport")
	}

	var se *catalog.StatusError
	if !errors.As(err, &se) || se.StatusCode != 404 {
		t.Fatalf("errors.As: %v", err)
	}

	if err.Error() != "catalog details: unexpected status 404: nope" {
		t.Fatalf("message: %s", err.Error())
	}
}

func TestAvailabilityRegion(t *testing.T) {
	a := catalog.Availability{ItemID: 1, Regions: map[string]catalog.RegionAvailability{
		"US": {Flatrate: []catalog.Offer{{ProviderID: 8, ProviderName: "Netflix"}}},
	}}

	if _, ok := a.Region("DE"); ok {
		t.Fatal("DE must be absent")
	}

	us, ok := a.Region("US")
	if !ok || len(us.Flatrate) != 1 {
		t.Fatalf("US: %+v %v", us, ok)
	}
}
