// Package metric provides Prometheus metrics for mtls client builds.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: Registry implementing mtls.Observer, and the HTTP handler
//
// Metrics include:
//
//   - Build counters by mode and result
//   - Build latency histograms
//   - Client certificate expiry gauges
//   - Credential reload counters
//
// Metrics are exposed at /metrics in Prometheus format by mtlsctl watch.
package metric
