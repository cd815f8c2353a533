package export

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const exportInstrumentationName = "github.com/fyrsmithlabs/motorqc/internal/export"

// Metrics holds export instruments.
type Metrics struct {
	meter    metric.Meter
	logger   *zap.Logger
	duration metric.Float64Histogram
	records  metric.Int64Histogram
	errors   metric.Int64Counter
}

// NewMetrics creates export metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(exportInstrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"motorqc.export.duration_seconds",
		metric.WithDescription("Duration of export actions in seconds, labeled by target (csv, excel, upload)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.records, err = m.meter.Int64Histogram(
		"motorqc.export.records",
		metric.WithDescription("Number of records per export action"),
		metric.WithUnit("{record}"),
		metric.WithExplicitBucketBoundaries(1, 10, 50, 100, 500, 1000, 5000),
	)
	if err != nil {
		m.logger.Warn("failed to create records histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"motorqc.export.errors_total",
		metric.WithDescription("Total failed export actions by target"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordExport records one export action.
func (m *Metrics) RecordExport(ctx context.Context, target string, duration time.Duration, count int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("target", target))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if count > 0 && m.records != nil {
		m.records.Record(ctx, int64(count), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
