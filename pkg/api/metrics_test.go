package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, r *gin.Engine) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMetricsMiddleware_Labels(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics()
	r := gin.New()
	r.Use(m.MetricsMiddleware())
	RegisterMetricsEndpoint(r, m)
	r.GET("/opendap/*path", func(c *gin.Context) { c.String(200, "ok") })
	r.POST("/authzen/decision", func(c *gin.Context) { c.JSON(201, gin.H{}) })

	for _, tt := range []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/opendap/data/file.nc", 200},
		{http.MethodGet, "/opendap/data/other.nc", 200},
		{http.MethodPost, "/authzen/decision", 201},
		{http.MethodGet, "/nowhere", 404},
	} {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.status, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/opendap/*path", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("POST", "/authzen/decision", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.APIRequestsInFlight))

	body := scrape(t, r)
	assert.Contains(t, body, `endpoint="/opendap/*path"`)
	assert.NotContains(t, body, `endpoint="/metrics"`)
}

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics()

	m.RecordLogin("urs", "success")
	m.RecordLogin("urs", "success")
	m.RecordLogin("apache", "failure")
	m.RecordDecision(true, time.Millisecond)
	m.RecordDecision(false, 2*time.Millisecond)
	m.RecordDecision(false, 3*time.Millisecond)
	m.RecordSessionCreated()
	m.RecordError("not_initialized", "pdp_service")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("urs", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("apache", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PDPDecisionsTotal.WithLabelValues("permit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PDPDecisionsTotal.WithLabelValues("deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("not_initialized", "pdp_service")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PDPDecisionDuration))
}

func TestMetricsEndpoint_PrometheusFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics()
	r := gin.New()
	RegisterMetricsEndpoint(r, m)

	m.RecordLogin("tomcat", "redirect")
	m.RecordDecision(true, time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	assert.True(t, strings.Contains(ct, "text/plain") || strings.Contains(ct, "application/openmetrics-text"), ct)

	body := w.Body.String()
	assert.Contains(t, body, "# HELP hyrax_auth_logins_total")
	assert.Contains(t, body, "# TYPE hyrax_auth_pdp_decisions_total counter")
	assert.Contains(t, body, `hyrax_auth_logins_total{auth_context="tomcat",outcome="redirect"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNewMetrics_Independent(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.RecordSessionCreated()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SessionsCreated))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsCreated))
}

func TestMetricsMiddleware_Concurrent(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics()
	r := gin.New()
	r.Use(m.MetricsMiddleware())
	r.GET("/status", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.JSON(200, gin.H{})
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			r.ServeHTTP(httptest.NewRecorder(), req)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("GET", "/status", "200")))
}

func BenchmarkMetricsMiddleware(b *testing.B) {
	gin.SetMode(gin.ReleaseMode)

	m := NewMetrics()
	r := gin.New()
	r.Use(m.MetricsMiddleware())
	r.GET("/status", func(c *gin.Context) { c.JSON(200, gin.H{}) })

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
}
