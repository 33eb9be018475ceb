package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveLogin("success")
	m.ObserveLogin("success")
	m.ObserveLogin("failure")
	m.ObserveCache("redis", true)
	m.ObserveCache("redis", false)
	m.ObservePurge(5)
	m.ObservePurge(-1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("redis")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.AuditLogsPurgedTotal))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/health", "200", 0.1)
		m.ObserveLogin("success")
		m.ObserveDenial("users", "view")
		m.ObserveConstraintRejection("view_required")
		m.ObserveCache("memory", true)
		m.ObservePurge(3)
		m.ObserveExport("users", "csv")
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveRequest("GET", "/api/users", "200", 0.02)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `safawinet_http_requests_total{method="GET",route="/api/users",status="200"} 1`)
}
