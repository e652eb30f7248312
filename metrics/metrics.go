// Package metrics exposes Prometheus metrics for the HTTP API and imports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds configuration for the Collector.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Path      string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Enabled: true, Namespace: "phishvars", Path: "/metrics"}
}

// Collector wraps Prometheus metrics with its own registry.
type Collector struct {
	config   Config
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ImportedRecords     *prometheus.CounterVec
	EntityWrites        *prometheus.CounterVec
}

// New creates a Collector with a fresh registry, including Go runtime and
// process collectors.
func New(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	ns := cfg.Namespace

	c := &Collector{
		config:   cfg,
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		ImportedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "imported_records_total",
			Help:      "Records parsed from uploaded CSV files",
		}, []string{"kind"}),
		EntityWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "entity_writes_total",
			Help:      "Field and variable writes by operation and outcome",
		}, []string{"kind", "operation", "status"}),
	}

	reg.MustRegister(
		c.HTTPRequestsTotal,
		c.HTTPRequestDuration,
		c.ImportedRecords,
		c.EntityWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Path returns the configured metrics endpoint path.
func (c *Collector) Path() string { return c.config.Path }

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns an HTTP handler that serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one request against its route pattern. The
// Record methods are no-ops on a nil Collector.
func (c *Collector) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	c.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordImport counts records parsed from an upload.
func (c *Collector) RecordImport(kind string, n int) {
	if c == nil {
		return
	}
	c.ImportedRecords.WithLabelValues(kind).Add(float64(n))
}

// RecordWrite counts a create, update or delete.
func (c *Collector) RecordWrite(kind, operation string, err error) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.EntityWrites.WithLabelValues(kind, operation, status).Inc()
}
