// Package app assembles the recommender from configuration: catalog client,
// optional breaker, event transport, bus middleware, agents and orchestrator.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel"

	"github.com/next-trace/scg-recommender/adapters/inmemory"
	"github.com/next-trace/scg-recommender/adapters/kafka"
	"github.com/next-trace/scg-recommender/adapters/nats"
	"github.com/next-trace/scg-recommender/adapters/rabbitmq"
	"github.com/next-trace/scg-recommender/agents"
	"github.com/next-trace/scg-recommender/catalog"
	"github.com/next-trace/scg-recommender/catalog/breaker"
	"github.com/next-trace/scg-recommender/catalog/tmdb"
	"github.com/next-trace/scg-recommender/config"
	cbus "github.com/next-trace/scg-recommender/contract/bus"
	"github.com/next-trace/scg-recommender/httpapi"
	"github.com/next-trace/scg-recommender/metrics"
	"github.com/next-trace/scg-recommender/orchestrator"
	"github.com/next-trace/scg-recommender/servicebus"
)

const instrumentationName = "github.com/next-trace/scg-recommender"

// App is a fully wired recommender.
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Metrics      *metrics.Collectors
	Bus          *servicebus.Bus
	Orchestrator *orchestrator.Orchestrator

	provider catalog.Provider

	closeOnce sync.Once
	closeErr  error
}

// Option customises New.
type Option func(*options)

type options struct {
	provider  catalog.Provider
	publisher cbus.EventPublisher
}

// WithProvider replaces the TMDb client. The breaker, when enabled, still wraps it.
func WithProvider(p catalog.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithPublisher replaces the configured event transport.
func WithPublisher(p cbus.EventPublisher) Option {
	return func(o *options) { o.publisher = p }
}

// New builds an App. On error everything built so far is released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := orchestrator.ParsePolicy(cfg.Enrichment.Policy)
	if err != nil {
		return nil, err
	}

	mc, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	provider, err := newProvider(cfg, o.provider, mc, logger)
	if err != nil {
		return nil, err
	}

	pub, cleanup, err := newPublisher(cfg, o.publisher, logger)
	if err != nil {
		closeProvider(provider)
		return nil, err
	}

	sb := servicebus.New(pub, logger,
		servicebus.WithMiddleware(
			servicebus.TracingMiddleware(otel.Tracer(instrumentationName)),
			servicebus.MetricsMiddleware(mc),
			servicebus.LoggingMiddleware(logger),
		),
		servicebus.WithCleanup(cleanup),
	)

	if err := agents.RegisterAll(sb, provider, cfg.WatchRegion); err != nil {
		_ = sb.Close()
		closeProvider(provider)

		return nil, fmt.Errorf("register agents: %w", err)
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(logger),
		orchestrator.WithPolicy(policy),
		orchestrator.WithObserver(mc),
		orchestrator.WithPublishTimeout(cfg.Events.PublishTimeout),
	}

	if sb.HasPublisher() {
		orchOpts = append(orchOpts, orchestrator.WithEvents(sb, cfg.Events.Topic))
	}

	logger.InfoContext(ctx, "recommender ready",
		"watch_region", cfg.WatchRegion,
		"enrichment_policy", string(policy),
		"events_transport", cfg.Events.Transport,
		"breaker", cfg.Breaker.Enabled,
		"handlers", sb.Names(),
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		Metrics:      mc,
		Bus:          sb,
		Orchestrator: orchestrator.New(sb, orchOpts...),
		provider:     provider,
	}, nil
}

// Handler returns the HTTP surface with /metrics mounted.
func (a *App) Handler() http.Handler {
	return httpapi.NewRouter(a.Orchestrator, a.Bus, httpapi.Config{
		CORSOrigins:        a.Config.Server.CORSOrigins,
		RateLimitPerMinute: a.Config.Server.RateLimitPerMinute,
	}, httpapi.WithLogger(a.Logger), httpapi.WithMetrics(a.Metrics.Handler())).Handler()
}

// Close waits for in-flight event publishes, shuts down the bus (publisher and
// broker connections) and releases the catalog transport. It is safe to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error

		a.Orchestrator.Drain()

		if err := a.Bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}

		if c, ok := a.provider.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close catalog: %w", err))
			}
		}

		a.closeErr = errors.Join(errs...)
	})

	return a.closeErr
}

func newProvider(cfg *config.Config, injected catalog.Provider, mc *metrics.Collectors, logger *slog.Logger) (catalog.Provider, error) {
	provider := injected
	if provider == nil {
		client, err := tmdb.New(tmdb.Config{
			APIKey:            cfg.TMDB.APIKey,
			BaseURL:           cfg.TMDB.BaseURL,
			Timeout:           cfg.TMDB.Timeout,
			RequestsPerSecond: cfg.TMDB.RequestsPerSecond,
			Burst:             cfg.TMDB.Burst,
		}, tmdb.WithObserver(mc), tmdb.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("catalog client: %w", err)
		}

		provider = client
	}

	if !cfg.Breaker.Enabled {
		return provider, nil
	}

	return breaker.New(provider, breaker.Settings{
		Name:         "catalog",
		MaxRequests:  cfg.Breaker.MaxRequests,
		Interval:     cfg.Breaker.Interval,
		Timeout:      cfg.Breaker.Timeout,
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
	}, mc, logger), nil
}

// newPublisher returns the event publisher for the configured transport and a
// cleanup for its connection. Transport "none" yields a nil publisher.
func newPublisher(cfg *config.Config, injected cbus.EventPublisher, logger *slog.Logger) (cbus.EventPublisher, func(), error) {
	if injected != nil {
		return injected, nil, nil
	}

	prop := servicebus.TracePropagator{}
	ev := cfg.Events

	switch ev.Transport {
	case "", "none":
		return nil, nil, nil
	case "memory":
		p := inmemory.New()
		p.Propagator = prop

		return p, nil, nil
	case "nats":
		p, cleanup, err := nats.NewWithNATS(nats.Config{
			URL:           ev.NATS.URL,
			Name:          ev.NATS.Name,
			ConnTimeout:   ev.NATS.ConnTimeout,
			MaxReconnects: ev.NATS.MaxReconnects,
		}, nats.WithPropagator(prop))
		if err != nil {
			return nil, nil, err
		}

		return p, cleanup, nil
	case "kafka":
		p, cleanup, err := kafka.NewWithKgo(kafka.Config{
			Brokers:     ev.Kafka.Brokers,
			ClientID:    ev.Kafka.ClientID,
			Acks:        ev.Kafka.Acks,
			Compression: ev.Kafka.Compression,
		}, prop)
		if err != nil {
			return nil, nil, err
		}

		return p, cleanup, nil
	case "rabbitmq":
		p, cleanup, err := rabbitmq.NewWithAMQPConn(rabbitmq.Config{
			URL:         ev.RabbitMQ.URL,
			Exchange:    ev.RabbitMQ.Exchange,
			ConnTimeout: ev.RabbitMQ.ConnTimeout,
			Logger:      logger,
		}, prop)
		if err != nil {
			return nil, nil, err
		}

		return p, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown events transport %q", ev.Transport)
	}
}

func closeProvider(p catalog.Provider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}
