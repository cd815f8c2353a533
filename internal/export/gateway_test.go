package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

func sampleRecords(t *testing.T, ids ...string) []record.Record {
	t.Helper()
	out := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := record.NewRecord(record.Form{
			MotorID:             id,
			GearID:              "G-" + id,
			VehicleSerialNumber: "VSN",
			WinNumber:           "WIN",
			Status:              "Good",
		}, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		out = append(out, rec)
	}
	return out
}

func TestGatewayConfig_URL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     GatewayConfig
		want    string
		wantErr bool
	}{
		{name: "defaults", cfg: GatewayConfig{}, want: "http://localhost:9090/api/upload"},
		{name: "relative endpoint", cfg: GatewayConfig{BaseURL: "http://relay:8080", Endpoint: "/upload"}, want: "http://relay:8080/upload"},
		{name: "absolute endpoint wins", cfg: GatewayConfig{BaseURL: "http://ignored", Endpoint: "https://api.example.com/prod/upload"}, want: "https://api.example.com/prod/upload"},
		{name: "relative base rejected", cfg: GatewayConfig{BaseURL: "relay"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.URL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateway_Export_Success(t *testing.T) {
	var received UploadRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"CSV uploaded successfully","key":"exports/x.csv"}`))
	}))
	defer srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	out := g.Export(context.Background(), sampleRecords(t, "M1", "M2"))
	require.True(t, out.Success, out.Message)
	assert.Equal(t, "Data exported successfully", out.Message)
	assert.Equal(t, "CSV uploaded successfully", out.Detail)
	assert.JSONEq(t, `{"message":"CSV uploaded successfully","key":"exports/x.csv"}`, string(out.Result))

	lines := strings.Split(received.CSVData, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,motorId,gearId"))
	assert.Contains(t, lines[1], ",M1,G-M1,")
	assert.Contains(t, lines[2], ",M2,G-M2,")
}

func TestGateway_Export_SuccessWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"key":"exports/x.csv"}`))
	}))
	defer srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out := g.Export(context.Background(), sampleRecords(t, "M1"))
	require.True(t, out.Success, out.Message)
	assert.Empty(t, out.Detail)
}

func TestGateway_Export_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out := g.Export(context.Background(), sampleRecords(t, "M1"))
	assert.False(t, out.Success)
	assert.Equal(t, "Export failed: API error: 500", out.Message)

	var apiErr *APIError
	require.True(t, errors.As(out.Err, &apiErr))
	assert.Equal(t, 500, apiErr.Status)
}

func TestGateway_Export_EmptyMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out := g.Export(context.Background(), nil)
	assert.False(t, out.Success)
	assert.Equal(t, "Export failed: No records to export", out.Message)
	assert.ErrorIs(t, out.Err, ErrNothingToExport)
	assert.Zero(t, calls.Load())
}

func TestGateway_Export_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: addr, Timeout: time.Second}, nil)
	require.NoError(t, err)

	out := g.Export(context.Background(), sampleRecords(t, "M1"))
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, ErrTransport)
	assert.True(t, strings.HasPrefix(out.Message, "Export failed: "))
	assert.NotContains(t, out.Message, "transport failure")
}

func TestGateway_Export_UndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	out := g.Export(context.Background(), sampleRecords(t, "M1"))
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "decoding response")
}

func TestGateway_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	m := newMetrics(provider.Meter("test"), nil)

	g, err := NewGateway(GatewayConfig{BaseURL: srv.URL}, nil, WithMetrics(m))
	require.NoError(t, err)
	g.Export(context.Background(), sampleRecords(t, "M1"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["motorqc.export.duration_seconds"])
	assert.True(t, names["motorqc.export.records"])
	assert.True(t, names["motorqc.export.errors_total"])
}
