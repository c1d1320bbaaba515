// Package otel publishes authcore metrics through an OpenTelemetry meter.
//
// [New] registers one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// [authcore.Engine.MetricsSnapshot] on every collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
