package servicebus

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
)

// TracePropagator injects the current trace context into broker headers using the
// globally configured OpenTelemetry propagator.
type TracePropagator struct {
	Propagator propagation.TextMapPropagator
}

var _ cbus.HeaderPropagator = TracePropagator{}

func (p TracePropagator) Inject(ctx context.Context, headers map[string]string) {
	prop := p.Propagator
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}

	prop.Inject(ctx, propagation.MapCarrier(headers))
}
