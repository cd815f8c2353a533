// Package logging provides structured logging for motorqc.
//
// Logger wraps Zap with context-aware methods. Correlation fields (trace and
// span ids, request id, inspection station and operator) are pulled from the
// context on every call:
//
//	ctx = logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))
//	ctx = logging.WithStation(ctx, &logging.Station{ID: "line-3", Operator: "op-17"})
//	logger.Info(ctx, "record added", zap.String("motor_id", rec.MotorID))
//
// Output goes to stdout (JSON or console), to the OpenTelemetry log bridge,
// or both. Below-error levels are sampled; errors never are. Field names
// that look like credentials are redacted by the encoder.
//
// Components that only need a *zap.Logger receive Underlying().
//
// Use NewTestLogger in tests to assert on what was logged.
package logging
