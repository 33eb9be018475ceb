package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	LoginsTotal               *prometheus.CounterVec
	PermissionDenialsTotal    *prometheus.CounterVec
	ConstraintRejectionsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Background jobs
	AuditLogsPurgedTotal prometheus.Counter
	ExportsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "safawinet_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_logins_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		PermissionDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_permission_denials_total",
				Help: "Requests rejected by the permission check",
			},
			[]string{"page", "action"},
		),
		ConstraintRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_permission_constraint_rejections_total",
				Help: "Permission edits rejected by the constraint rules",
			},
			[]string{"code"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),
		AuditLogsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "safawinet_audit_logs_purged_total",
				Help: "Audit log entries removed by the retention job",
			},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safawinet_exports_total",
				Help: "Generated export files",
			},
			[]string{"resource", "format"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LoginsTotal,
		m.PermissionDenialsTotal,
		m.ConstraintRejectionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.AuditLogsPurgedTotal,
		m.ExportsTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The helpers below tolerate a nil receiver so components can run without metrics.

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// ObserveLogin counts a login attempt by outcome (success, failure, two_factor_required)
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDenial counts a request refused for lack of page:action
func (m *Metrics) ObserveDenial(page, action string) {
	if m == nil {
		return
	}
	m.PermissionDenialsTotal.WithLabelValues(page, action).Inc()
}

// ObserveConstraintRejection counts a rejected permission edit
func (m *Metrics) ObserveConstraintRejection(code string) {
	if m == nil {
		return
	}
	m.ConstraintRejectionsTotal.WithLabelValues(code).Inc()
}

// ObserveCache counts a cache lookup
func (m *Metrics) ObserveCache(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// ObservePurge adds n purged audit entries
func (m *Metrics) ObservePurge(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.AuditLogsPurgedTotal.Add(float64(n))
}

// ObserveExport counts a generated export
func (m *Metrics) ObserveExport(resource, format string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(resource, format).Inc()
}
