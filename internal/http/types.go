package http

import (
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Records int    `json:"records"`
}

// RecordsResponse is the response body for GET /api/v1/records.
type RecordsResponse struct {
	Records []record.Record `json:"records"`
	Count   int             `json:"count"`
}

// PreviewResponse is the response body for GET /api/v1/export/preview.
type PreviewResponse struct {
	Records []record.Record `json:"records"`
	Total   int             `json:"total"`
	Columns []string        `json:"columns"`
}

// AddRecordResponse is the response body for POST /api/v1/records.
type AddRecordResponse struct {
	Record    record.Record `json:"record"`
	Persisted bool          `json:"persisted"`
}
