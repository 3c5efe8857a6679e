// Package prometheus exposes goAuthz engine counters through
// prometheus/client_golang.
//
// [PrometheusExporter] implements prometheus.Collector and turns each engine
// snapshot into const metrics: one goauthz_*_total counter per engine
// counter, the goauthz_policy_latency_seconds histogram when latency
// histograms are enabled, and goauthz_audit_dropped_total.
//
// The exporter never touches the global registry. Mount
// [PrometheusExporter.Handler] or register the exporter yourself.
package prometheus
