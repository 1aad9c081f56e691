package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/next-trace/scg-recommender/agents"
	"github.com/next-trace/scg-recommender/ids"
	"github.com/next-trace/scg-recommender/orchestrator"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Pipeline is the part of the orchestrator the HTTP surface drives.
type Pipeline interface {
	Recommend(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error)
	WhereToWatch(ctx context.Context, itemID int64, region string) (agents.AvailabilityReply, error)
}

// HandlerLister reports the registered bus handler names.
type HandlerLister interface {
	Names() []string
}

// Config holds the router's cross-cutting settings.
type Config struct {
	CORSOrigins        []string
	RateLimitPerMinute int
}

// Option customises the router.
type Option func(*Router)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(r *Router) { r.metrics = h }
}

// Router serves the HTTP surface.
type Router struct {
	pipeline Pipeline
	handlers HandlerLister
	cfg      Config
	logger   *slog.Logger
	metrics  http.Handler
}

// NewRouter builds the router. handlers may be nil, in which case /healthz reports none.
func NewRouter(p Pipeline, handlers HandlerLister, cfg Config, opts ...Option) *Router {
	r := &Router{
		pipeline: p,
		handlers: handlers,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Handler returns the chi mux with the global middleware stack applied.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(rt.requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.accessLog)

	if len(rt.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", rt.health)

	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics)
	}

	r.Group(func(r chi.Router) {
		if rt.cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(rt.cfg.RateLimitPerMinute, time.Minute))
		}

		r.Post("/recommend", rt.recommend)
		r.Post("/where_to_watch", rt.whereToWatch)
	})

	return r
}

// requestID reuses a valid inbound X-Request-ID or mints a ULID, echoes it on the
// response and stores it in the request context.
func (rt *Router) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !ids.Valid(id) {
			id = ids.New()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ids.WithRequestID(r.Context(), id)))
	})
}

func (rt *Router) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		rt.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", ids.RequestID(r.Context()),
		)
	})
}
