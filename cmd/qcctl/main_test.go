package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/motorqc/internal/export"
	qchttp "github.com/fyrsmithlabs/motorqc/internal/http"
	"github.com/fyrsmithlabs/motorqc/internal/logging"
	"github.com/fyrsmithlabs/motorqc/internal/record"
	"github.com/fyrsmithlabs/motorqc/internal/store"
)

func startServer(t *testing.T, extra ...export.Target) (*httptest.Server, *store.Store) {
	t.Helper()
	st, err := store.New(context.Background(), store.NewMemoryPersister(), nil)
	require.NoError(t, err)

	exports := export.NewRegistry(
		export.NewCSVFileTarget(t.TempDir(), nil),
		export.NewExcelTarget(t.TempDir(), nil),
	)
	for _, target := range extra {
		exports.Register(target)
	}

	srv, err := qchttp.NewServer(qchttp.Deps{
		Store:   st,
		Exports: exports,
		Logger: logging.NewTestLogger().Logger,
	}, &qchttp.Config{Version: "test"})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, st
}

// execute runs qcctl with args against server and returns stdout.
func execute(t *testing.T, server, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func addArgs(motor, status string) []string {
	return []string{"add", "--motor", motor, "--gear", "G1", "--vsn", "V1", "--win", "W1", "--status", status}
}

func TestAdd(t *testing.T) {
	ts, st := startServer(t)

	out, err := execute(t, ts.URL, "", addArgs("M-1001", "Not Good")...)
	require.NoError(t, err)
	assert.Contains(t, out, "M-1001, Not Good")
	assert.Equal(t, 1, st.Len())

	_, err = execute(t, ts.URL, "", "add", "--motor", "M-1002")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please fill in all required fields")
	assert.Equal(t, 1, st.Len())
}

func TestList(t *testing.T) {
	ts, _ := startServer(t)

	out, err := execute(t, ts.URL, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No records")

	_, err = execute(t, ts.URL, "", addArgs("M1", "Good")...)
	require.NoError(t, err)
	_, err = execute(t, ts.URL, "", addArgs("M2", "Not Good")...)
	require.NoError(t, err)

	t.Run("table", func(t *testing.T) {
		out, err := execute(t, ts.URL, "", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "MOTOR")
		assert.Contains(t, out, "M1")
		assert.Contains(t, out, "Not Good")
		assert.Contains(t, out, "0/4")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, ts.URL, "", "list", "-o", "json")
		require.NoError(t, err)
		var recs []record.Record
		require.NoError(t, json.Unmarshal([]byte(out), &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "M2", recs[1].MotorID)
		assert.Equal(t, record.StatusNotGood, recs[1].Status)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, ts.URL, "", "list", "-o", "yaml")
		require.NoError(t, err)
		var recs []map[string]any
		require.NoError(t, yaml.Unmarshal([]byte(out), &recs))
		require.Len(t, recs, 2)
		assert.Equal(t, "M1", recs[0]["motorId"])
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := execute(t, ts.URL, "", "list", "-o", "xml")
		assert.ErrorContains(t, err, "unknown output format")
	})
}

func TestClear(t *testing.T) {
	ts, st := startServer(t)
	_, err := execute(t, ts.URL, "", addArgs("M1", "Good")...)
	require.NoError(t, err)

	out, err := execute(t, ts.URL, "n\n", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")
	assert.Equal(t, 1, st.Len())

	out, err = execute(t, ts.URL, "y\n", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "All records cleared")
	assert.Zero(t, st.Len())

	_, err = execute(t, ts.URL, "", addArgs("M2", "Good")...)
	require.NoError(t, err)
	_, err = execute(t, ts.URL, "", "clear", "--yes")
	require.NoError(t, err)
	assert.Zero(t, st.Len())
}

func TestExport(t *testing.T) {
	ts, _ := startServer(t)

	_, err := execute(t, ts.URL, "", "export", "csv")
	assert.ErrorContains(t, err, "Export failed: No records to export")

	_, err = execute(t, ts.URL, "", "export", "pdf")
	assert.ErrorContains(t, err, "unknown value")

	_, err = execute(t, ts.URL, "", addArgs("M1", "Good")...)
	require.NoError(t, err)

	out, err := execute(t, ts.URL, "", "export", "excel")
	require.NoError(t, err)
	assert.Contains(t, out, "Data exported as Excel")
	assert.Contains(t, out, "1 records exported successfully")
	assert.Contains(t, out, ".xlsx")
}

func TestExportUpload(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"CSV uploaded successfully","key":"exports/motor-data-x.csv","bytes":10}`))
	}))
	defer upstream.Close()

	gateway, err := export.NewGateway(export.GatewayConfig{BaseURL: upstream.URL}, nil)
	require.NoError(t, err)
	ts, _ := startServer(t, gateway)

	_, err = execute(t, ts.URL, "", addArgs("M1", "Good")...)
	require.NoError(t, err)

	out, err := execute(t, ts.URL, "", "export", "upload")
	require.NoError(t, err)
	assert.Contains(t, out, "Data exported successfully\nCSV uploaded successfully\n")
	assert.Contains(t, out, "Key:  exports/motor-data-x.csv")
}

func TestAnalytics(t *testing.T) {
	ts, _ := startServer(t)
	for _, status := range []string{"Good", "Good", "Not Good"} {
		_, err := execute(t, ts.URL, "", addArgs("M", status)...)
		require.NoError(t, err)
	}

	out, err := execute(t, ts.URL, "", "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "Total:            3")
	assert.Contains(t, out, "Quality Rate:     67%")
	assert.Contains(t, out, "rpm4500")

	out, err = execute(t, ts.URL, "", "analytics", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"qualityRate": 67`)
}

func TestHealth(t *testing.T) {
	ts, _ := startServer(t)

	out, err := execute(t, ts.URL, "", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "Server Status: ok")
	assert.Contains(t, out, "Version:       test")

	addr := ts.URL
	ts.Close()
	_, err = execute(t, addr, "", "health")
	assert.ErrorContains(t, err, "failed to reach")
}

func TestDashboard_RejectsBadInterval(t *testing.T) {
	_, err := execute(t, "http://localhost:1", "", "dashboard", "--interval", "0s")
	assert.ErrorContains(t, err, "interval must be positive")
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "json", "yaml"} {
		f, err := parseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, outputFormat(s), f)
	}
	_, err := parseFormat("csv")
	assert.Error(t, err)
}
