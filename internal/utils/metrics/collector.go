// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "token_scanner"

// Collector owns the engine's metrics on a private registry so that each
// test (and each process) gets a fresh, independent set.
type Collector struct {
	registry *prometheus.Registry

	providerCalls   *prometheus.CounterVec
	gateWait        *prometheus.HistogramVec
	discovery       *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	throttle        *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	detailDuration  prometheus.Histogram
	detailsInFlight prometheus.Gauge
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		providerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Upstream provider calls by outcome",
			},
			[]string{"provider", "op", "outcome"},
		),
		gateWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gate_wait_seconds",
				Help:      "Time spent queued at a rate gate",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
			},
			[]string{"gate"},
		),
		discovery: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "discovery_total",
				Help:      "Discovery runs by status and winning strategy",
			},
			[]string{"status", "strategy"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups",
			},
			[]string{"result"},
		),
		throttle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "throttle_decisions_total",
				Help:      "Per-user cooldown decisions",
			},
			[]string{"decision"},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_events_total",
				Help:      "Session store events",
			},
			[]string{"event"},
		),
		detailDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "detail_assembly_seconds",
				Help:      "Wall-clock time of a token detail assembly",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		detailsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "detail_assemblies_in_flight",
				Help:      "Detail assemblies currently running",
			},
		),
	}

	c.registry.MustRegister(
		c.providerCalls,
		c.gateWait,
		c.discovery,
		c.cacheLookups,
		c.throttle,
		c.sessions,
		c.detailDuration,
		c.detailsInFlight,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.providerCalls.Reset()
	c.gateWait.Reset()
	c.discovery.Reset()
	c.cacheLookups.Reset()
	c.throttle.Reset()
	c.sessions.Reset()
	c.detailsInFlight.Set(0)
}
