// Package client talks to the motorqcd HTTP API. The CLI and the dashboard
// share it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fyrsmithlabs/motorqc/internal/analytics"
	"github.com/fyrsmithlabs/motorqc/internal/export"
	qchttp "github.com/fyrsmithlabs/motorqc/internal/http"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

// DefaultServerURL is where motorqcd listens by default.
const DefaultServerURL = "http://localhost:9090"

// StatusError is a non-2xx reply from the server.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Status, e.Message)
}

// Client queries a motorqcd server.
type Client struct {
	baseURL  string
	client   *http.Client
	station  string
	operator string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithStation tags every request with the inspection station and operator.
func WithStation(id, operator string) Option {
	return func(c *Client) {
		c.station = id
		c.operator = operator
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Health returns the server health report.
func (c *Client) Health(ctx context.Context) (qchttp.HealthResponse, error) {
	var out qchttp.HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Records lists every stored record in insertion order.
func (c *Client) Records(ctx context.Context) ([]record.Record, error) {
	var out qchttp.RecordsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/records", nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// Add submits a record form.
func (c *Client) Add(ctx context.Context, form record.Form) (qchttp.AddRecordResponse, error) {
	var out qchttp.AddRecordResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/records", form, &out)
	return out, err
}

// Clear removes every record.
func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/records", nil, nil)
}

// Analytics returns the dashboard summary.
func (c *Client) Analytics(ctx context.Context) (analytics.Summary, error) {
	var out analytics.Summary
	err := c.do(ctx, http.MethodGet, "/api/v1/analytics", nil, &out)
	return out, err
}

// Preview returns the export preview.
func (c *Client) Preview(ctx context.Context) (qchttp.PreviewResponse, error) {
	var out qchttp.PreviewResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/export/preview", nil, &out)
	return out, err
}

// Export runs the named export target on the server. A failed export is
// reported through the Outcome; the error is only set when no outcome could
// be read.
func (c *Client) Export(ctx context.Context, target string) (export.Outcome, error) {
	resp, err := c.send(ctx, http.MethodPost, "/api/v1/export/"+url.PathEscape(target), nil)
	if err != nil {
		return export.Outcome{}, err
	}
	defer resp.Body.Close()

	var out export.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return export.Outcome{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.station != "" {
		req.Header.Set(qchttp.HeaderStationID, c.station)
		if c.operator != "" {
			req.Header.Set(qchttp.HeaderOperatorID, c.operator)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// statusError reads the server's {"message": ...} body when there is one.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		msg = body.Message
	}
	return &StatusError{Status: resp.StatusCode, Message: msg}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == code
}
