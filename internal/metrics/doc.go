// Package metrics records docstream build metrics.
//
// Components take a Recorder and default to NoopRecorder, so metrics are
// opt-in and never need nil checks at call sites. The CLI swaps in a
// PrometheusRecorder when -metrics-addr is set and serves it with
// HTTPHandler.
package metrics
