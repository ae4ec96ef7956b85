// Package tracing sets up OpenTelemetry tracing for Report Keeper.
//
// Spans are exported over OTLP gRPC to the collector named in
// telemetry.tracing.endpoint:
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// The HTTP API opens one server span per request (Middleware), continuing an
// incoming W3C traceparent. Reclamation runs open a "reclamation.run" span
// with one child span per batch through the global provider New installs.
package tracing
