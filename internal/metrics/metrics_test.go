package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngestMetrics(reg)

	m.AddRecords(StreamCards, OutcomeSaved, 3)
	m.AddRecords(StreamCards, OutcomeSkipped, 1)
	m.AddRecords(StreamCards, OutcomeSkipped, 0)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues(StreamCards, OutcomeSaved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(StreamCards, OutcomeSkipped)))

	m.ObserveRun("prices", time.Now(), nil)
	m.ObserveRun("prices", time.Now(), errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("prices", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("prices", "failure")))
	assert.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("prices")))
}

func TestIngestMetricsNilReceiver(t *testing.T) {
	var m *IngestMetrics
	assert.NotPanics(t, func() {
		m.AddRecords(StreamPrices, OutcomeSaved, 1)
		m.ObserveRun("prices", time.Now(), nil)
	})
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	reg := NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/sets/{code}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Handle("/metrics", Handler(reg))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sets/KLD", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/sets/{code}", "GET", "404")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "mtgcatalog_http_requests_total"))
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
