// Package otel binds softoken engine metrics to an OpenTelemetry meter.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and
// an Int64ObservableGauge per histogram bucket. One callback reads
// [softoken.Engine.MetricsSnapshot] on each collection cycle. The caller
// owns the MeterProvider.
package otel
