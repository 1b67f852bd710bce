// Package otel publishes Tanglr client metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per client counter and
// an Int64ObservableGauge per latency bucket. One callback reads
// [tanglr.Client.MetricsSnapshot] on each collection. The caller owns the
// MeterProvider.
package otel
