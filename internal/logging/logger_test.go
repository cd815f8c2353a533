package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/motorqc/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.NoError(t, logger.Sync())
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "format")

	cfg = NewDefaultConfig()
	cfg.Output.Stdout = false
	_, err = NewLogger(cfg, nil)
	assert.ErrorContains(t, err, "at least one output")
}

func TestFromFileConfig(t *testing.T) {
	cfg, err := FromFileConfig(config.LoggingConfig{Level: "trace", Format: "console", Sampling: false})
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.False(t, cfg.Sampling.Enabled)

	_, err = FromFileConfig(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)
}

func TestLogger_ContextFields(t *testing.T) {
	tl := NewTestLogger()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithStation(ctx, &Station{ID: "line-3", Operator: "op-17"})

	tl.Info(ctx, "record added", zap.String("motor_id", "M1"))

	tl.AssertLogged(t, zapcore.InfoLevel, "record added")
	tl.AssertField(t, "record added", "trace_id", traceID.String())
	tl.AssertField(t, "record added", "request.id", "req-1")
	tl.AssertField(t, "record added", "station.id", "line-3")
	tl.AssertField(t, "record added", "station.operator", "op-17")
	tl.AssertField(t, "record added", "motor_id", "M1")
}

func TestContext_InvalidIDsDropped(t *testing.T) {
	ctx := WithRequestID(context.Background(), "bad id\n")
	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithStation(context.Background(), &Station{ID: "line 3"})
	assert.Nil(t, StationFromContext(ctx))

	ctx = WithStation(context.Background(), &Station{ID: "line-3", Operator: "bad op"})
	st := StationFromContext(ctx)
	require.NotNil(t, st)
	assert.Empty(t, st.Operator)
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Warn(ctx, "from context")
	tl.AssertLogged(t, zapcore.WarnLevel, "from context")
}

func TestRedactingEncoder(t *testing.T) {
	enc, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	var buf bytes.Buffer
	core := zapcore.NewCore(enc, zapcore.AddSync(&buf), zapcore.InfoLevel)
	z := zap.New(core)
	z.Info("forwarding",
		zap.String("forward_api_key", "abc123"),
		zap.String("header", "Bearer eyJhbGciOi"),
		zap.String("motor_id", "M1"),
		Secret("token", config.Secret("hunter2")),
	)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "[REDACTED]", entry["forward_api_key"])
	assert.Equal(t, "[REDACTED:pattern]", entry["header"])
	assert.Equal(t, "M1", entry["motor_id"])
	assert.Equal(t, "[REDACTED]", entry["token"])
}

func TestRedactingEncoder_InvalidPattern(t *testing.T) {
	_, err := NewRedactingEncoder(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), RedactionConfig{
		Enabled:  true,
		Patterns: []string{"("},
	})
	assert.Error(t, err)
}

func TestSampling_ErrorsNeverDropped(t *testing.T) {
	var buf bytes.Buffer
	base := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(&buf), TraceLevel)
	core := newSampledCore(base, SamplingConfig{
		Enabled:    true,
		Tick:       config.Duration(time.Minute),
		Initial:    1,
		Thereafter: 0,
	})
	z := zap.New(core)

	for i := 0; i < 5; i++ {
		z.Info("repeated")
		z.Error("failure")
	}

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, 6, lines, "1 sampled info + 5 errors")
}
