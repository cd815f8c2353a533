package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/motorqc/internal/csvcodec"
	"github.com/fyrsmithlabs/motorqc/internal/record"
)

const (
	// DefaultEndpoint is the relay path used when none is configured.
	DefaultEndpoint = "/api/upload"

	// DefaultBaseURL anchors a relative endpoint.
	DefaultBaseURL = "http://localhost:9090"

	maxResponseBytes = 4 << 20
)

// GatewayConfig configures the upload gateway.
type GatewayConfig struct {
	// BaseURL resolves a relative Endpoint.
	BaseURL string
	// Endpoint is an absolute URL or a path relative to BaseURL.
	Endpoint string
	// Timeout bounds the single request. Zero leaves the transport default.
	Timeout time.Duration
}

// URL resolves the endpoint against the base URL.
func (c GatewayConfig) URL() (string, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", baseURL, err)
	}
	if !base.IsAbs() {
		return "", fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return base.ResolveReference(ref).String(), nil
}

// UploadRequest is the JSON envelope POSTed to the relay.
type UploadRequest struct {
	CSVData string `json:"csv_data"`
}

// Gateway serializes records to CSV and POSTs them to the upload relay.
// It makes exactly one attempt per call.
type Gateway struct {
	url     string
	client  *http.Client
	logger  *zap.Logger
	metrics *Metrics
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.client = c
	}
}

// WithMetrics replaces the metrics recorder.
func WithMetrics(m *Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// NewGateway creates a gateway for cfg.
func NewGateway(cfg GatewayConfig, logger *zap.Logger, opts ...GatewayOption) (*Gateway, error) {
	target, err := cfg.URL()
	if err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		url:    target,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = NewMetrics(logger)
	}
	return g, nil
}

// Name implements Target.
func (g *Gateway) Name() string { return "upload" }

// URL returns the resolved endpoint.
func (g *Gateway) URL() string { return g.url }

// Export implements Target. It never returns a raw error: every failure is
// folded into the Outcome.
func (g *Gateway) Export(ctx context.Context, records []record.Record) Outcome {
	start := time.Now()
	result, err := g.Upload(ctx, records)
	g.metrics.RecordExport(ctx, g.Name(), time.Since(start), len(records), err)

	if err != nil {
		g.logger.Warn("export upload failed",
			zap.String("url", g.url),
			zap.Int("records", len(records)),
			zap.Error(err))
		return Failed(err)
	}

	detail := gjson.GetBytes(result, "message").String()
	g.logger.Info("export uploaded",
		zap.String("url", g.url),
		zap.Int("records", len(records)),
		zap.String("relay_message", detail))

	return Outcome{
		Success: true,
		Message: "Data exported successfully",
		Detail:  detail,
		Result:  result,
	}
}

// Upload performs the request and returns the relay's JSON response body.
func (g *Gateway) Upload(ctx context.Context, records []record.Record) (json.RawMessage, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}

	body, err := json.Marshal(UploadRequest{
		CSVData: csvcodec.Encode(record.FlattenAll(records)),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &APIError{Status: resp.StatusCode}
	}

	var payload json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return payload, nil
}
