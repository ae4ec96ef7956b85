// Package telemetry groups Report Keeper's observability packages.
//
//   - logging: slog setup with context fields and PII redaction
//   - metrics: Prometheus registry, HTTP and lifecycle metrics
//   - tracing: OpenTelemetry spans for requests and reclamation runs
//   - health: liveness and readiness probes
package telemetry
