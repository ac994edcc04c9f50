// Package metrics holds the Prometheus collectors shared by the manifest,
// the dev orchestrator, and the server runtime.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional collector without branching at each call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "devstack").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// Metrics is the set of devstack collectors, registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	manifestLookups  *prometheus.CounterVec
	assetsComputed   *prometheus.CounterVec
	assetsDuration   *prometheus.HistogramVec
	devServerStarts  *prometheus.CounterVec
	devServerStartup *prometheus.HistogramVec
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry, so
// several instances can coexist in one process (tests, embedded use).
func New(reg *prometheus.Registry, opts ...Option) *Metrics {
	config := Config{
		Namespace: "devstack",
		Buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		manifestLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "manifest",
			Name:        "lookups_total",
			Help:        "Manifest input resolutions by bundler and result",
			ConstLabels: config.ConstLabels,
		}, []string{"bundler", "result"}),

		assetsComputed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "manifest",
			Name:        "asset_computations_total",
			Help:        "Entry asset computations by router and result",
			ConstLabels: config.ConstLabels,
		}, []string{"router", "result"}),

		assetsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   "manifest",
			Name:        "asset_duration_seconds",
			Help:        "Entry asset computation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"router"}),

		devServerStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "dev",
			Name:        "server_starts_total",
			Help:        "Per-router dev server starts by result",
			ConstLabels: config.ConstLabels,
		}, []string{"router", "result"}),

		devServerStartup: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   "dev",
			Name:        "server_startup_seconds",
			Help:        "Per-router dev server startup duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"router"}),

		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "HTTP requests by route kind, method and status",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds by route kind",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordLookup counts one manifest input resolution.
func (m *Metrics) RecordLookup(bundler string, err error) {
	if m == nil {
		return
	}
	m.manifestLookups.WithLabelValues(bundler, result(err)).Inc()
}

// RecordAssets records one entry asset computation.
func (m *Metrics) RecordAssets(router string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.assetsComputed.WithLabelValues(router, result(err)).Inc()
	m.assetsDuration.WithLabelValues(router).Observe(d.Seconds())
}

// RecordDevServerStart records one per-router dev server start.
func (m *Metrics) RecordDevServerStart(router string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.devServerStarts.WithLabelValues(router, result(err)).Inc()
	m.devServerStartup.WithLabelValues(router).Observe(d.Seconds())
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// statusClass buckets a status code into "2xx", "4xx", etc. to bound label
// cardinality.
func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
