// Package telemetry wires OpenTelemetry tracing and metrics.
//
// A run produces one "treedoc.run" span with a child span per phase, a
// "treedoc.file" span per summarized file and a "treedoc.folder" span per
// aggregated folder. Exporters speak OTLP over gRPC or HTTP/protobuf.
//
// Telemetry is off by default. When enabled but the collector cannot be
// reached, the run continues and Health reports the degradation.
package telemetry
