// Package metrics holds the Prometheus collectors for the bus, the catalog client,
// enrichment and the catalog circuit breaker.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scg_recommender"

var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Collectors implements the observer interfaces of servicebus, catalog,
// orchestrator and breaker on top of one registry.
type Collectors struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	catalogTotal     *prometheus.CounterVec
	catalogDuration  *prometheus.HistogramVec
	enrichmentTotal  *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func newHistogramVec(subsystem, name, help string, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   latencyBuckets,
	}, labels)
}

// New creates the collectors and registers them on a fresh registry together with
// the Go runtime and process collectors.
func New() (*Collectors, error) {
	c := &Collectors{
		registry:         prometheus.NewRegistry(),
		dispatchTotal:    newCounterVec("bus", "dispatch_total", "Bus dispatches by handler and outcome.", []string{"handler", "outcome"}),
		dispatchDuration: newHistogramVec("bus", "dispatch_duration_seconds", "Bus dispatch latency by handler.", []string{"handler"}),
		catalogTotal:     newCounterVec("catalog", "requests_total", "Catalog requests by operation and outcome.", []string{"op", "outcome"}),
		catalogDuration:  newHistogramVec("catalog", "request_duration_seconds", "Catalog request latency by operation.", []string{"op"}),
		enrichmentTotal:  newCounterVec("enrichment", "lookups_total", "Availability lookups by outcome.", []string{"outcome"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"name"}),
	}

	toRegister := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.dispatchTotal,
		c.dispatchDuration,
		c.catalogTotal,
		c.catalogDuration,
		c.enrichmentTotal,
		c.breakerState,
	}

	var errs []error

	for _, col := range toRegister {
		if err := c.registry.Register(col); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return c, nil
}

// Registry exposes the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collectors) ObserveDispatch(handler, outcome string, elapsed time.Duration) {
	c.dispatchTotal.WithLabelValues(handler, outcome).Inc()
	c.dispatchDuration.WithLabelValues(handler).Observe(elapsed.Seconds())
}

func (c *Collectors) ObserveCatalogRequest(op, outcome string, elapsed time.Duration) {
	c.catalogTotal.WithLabelValues(op, outcome).Inc()
	c.catalogDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *Collectors) ObserveEnrichment(outcome string) {
	c.enrichmentTotal.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ObserveBreakerState(name string, state float64) {
	c.breakerState.WithLabelValues(name).Set(state)
}
