// Package telemetry sets up OpenTelemetry trace and metric providers for
// motorqc.
//
// When disabled the global no-op providers stay in place and instrumented
// packages (store spans, export and HTTP metrics) record nothing. When
// enabled, traces and metrics are exported over OTLP using gRPC or
// HTTP/protobuf. Provider failures degrade telemetry instead of failing
// startup.
package telemetry
