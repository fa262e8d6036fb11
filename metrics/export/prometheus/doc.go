// Package prometheus exposes softoken engine metrics through
// prometheus/client_golang.
//
// [NewCollector] returns a prometheus.Collector that callers can register
// with any registry; [Collector.Handler] serves it from a private registry.
// Counter names are softoken_*_total and the single histogram is
// softoken_get_latency_seconds.
package prometheus
