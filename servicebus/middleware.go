package servicebus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cbus "github.com/next-trace/scg-recommender/contract/bus"
	berr "github.com/next-trace/scg-recommender/contract/errors"
)

// Dispatch outcomes reported to observers.
const (
	OutcomeOK             = "ok"
	OutcomeRejected       = "rejected"
	OutcomeError          = "error"
	OutcomeUnknownHandler = "unknown_handler"
)

// DispatchObserver receives one observation per dispatch.
type DispatchObserver interface {
	ObserveDispatch(handler, outcome string, elapsed time.Duration)
}

// Outcome classifies a dispatch result.
func Outcome(reply any, err error) string {
	switch {
	case errors.Is(err, berr.ErrUnknownHandler):
		return OutcomeUnknownHandler
	case err != nil:
		return OutcomeError
	}

	if s, ok := reply.(cbus.StatusReply); ok && !s.OK() {
		return OutcomeRejected
	}

	return OutcomeOK
}

// LoggingMiddleware logs every dispatch at debug level and failures at warn.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, name string, msg any) (any, error) {
			start := time.Now()
			res, err := next(ctx, name, msg)

			outcome := Outcome(res, err)
			if err != nil {
				logger.WarnContext(ctx, "bus dispatch failed",
					"handler", name, "outcome", outcome, "elapsed", time.Since(start), "error", err)

				return res, err
			}

			logger.DebugContext(ctx, "bus dispatch",
				"handler", name, "outcome", outcome, "elapsed", time.Since(start))

			return res, nil
		}
	}
}

// MetricsMiddleware reports dispatch outcome and latency to obs.
func MetricsMiddleware(obs DispatchObserver) Middleware {
	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, name string, msg any) (any, error) {
			start := time.Now()
			res, err := next(ctx, name, msg)
			obs.ObserveDispatch(name, Outcome(res, err), time.Since(start))

			return res, err
		}
	}
}

// TracingMiddleware wraps each dispatch in a span. A nil tracer uses the global provider.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer("github.com/next-trace/scg-recommender/servicebus")
	}

	return func(next DispatchFunc) DispatchFunc {
		return func(ctx context.Context, name string, msg any) (any, error) {
			ctx, span := tracer.Start(ctx, "bus.dispatch "+name, trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			res, err := next(ctx, name, msg)

			span.SetAttributes(
				attribute.String("bus.handler", name),
				attribute.String("bus.outcome", Outcome(res, err)),
			)

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}

			return res, err
		}
	}
}
