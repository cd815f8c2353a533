package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.POST("/api/v1/export/:target", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "unknown")
	})

	for _, r := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/export/pdf", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/export/docx", nil),
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, r)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var requests *metricdata.Sum[int64]
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
			if md.Name == "motorqc.http.requests_total" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				requests = &sum
			}
		}
	}
	assert.True(t, names["motorqc.http.request_duration_seconds"])
	assert.True(t, names["motorqc.http.response_size_bytes"])
	require.NotNil(t, requests)

	byRoute := map[string]int64{}
	for _, dp := range requests.DataPoints {
		route, _ := dp.Attributes.Value(attribute.Key("route"))
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		if route.AsString() == "/api/v1/export/:target" {
			assert.Equal(t, int64(404), status.AsInt64())
		}
		byRoute[route.AsString()] += dp.Value
	}
	assert.Equal(t, int64(1), byRoute["/health"])
	assert.Equal(t, int64(2), byRoute["/api/v1/export/:target"])
}

func TestNormalizeRoute(t *testing.T) {
	assert.Equal(t, "unmatched", normalizeRoute(""))
	assert.Equal(t, "/api/v1/records", normalizeRoute("/api/v1/records"))
}
