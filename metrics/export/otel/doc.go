// Package otel publishes goAuthz engine counters through an OpenTelemetry
// metric.Meter supplied by the caller.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and a set of gauges per histogram. A single callback reads the engine
// snapshot on each collection cycle; [OTelExporter.Close] unregisters it.
package otel
