package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if st := StationFromContext(ctx); st != nil {
		fields = append(fields, zap.String("station.id", st.ID))
		if st.Operator != "" {
			fields = append(fields, zap.String("station.operator", st.Operator))
		}
	}

	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type stationCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// Station identifies the inspection station a request came from.
type Station struct {
	ID       string
	Operator string
}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateID checks an identifier is safe to log.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("id exceeds max length %d", maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("id %q contains invalid characters", id)
	}
	return nil
}

// WithStation adds station to ctx. Invalid identifiers are dropped.
func WithStation(ctx context.Context, st *Station) context.Context {
	if st == nil || ValidateID(st.ID) != nil {
		return ctx
	}
	if st.Operator != "" && ValidateID(st.Operator) != nil {
		st = &Station{ID: st.ID}
	}
	return context.WithValue(ctx, stationCtxKey{}, st)
}

// StationFromContext returns the station stored in ctx, or nil.
func StationFromContext(ctx context.Context) *Station {
	if st, ok := ctx.Value(stationCtxKey{}).(*Station); ok {
		return st
	}
	return nil
}

// WithRequestID adds a request id to ctx. Invalid ids are dropped.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ValidateID(requestID) != nil {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id stored in ctx.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return New(nil)
}
