// Package metrics exposes Prometheus instrumentation for the embedding job,
// the search engine and the HTTP API.
//
// A Metrics value owns its own registry. It implements reembed.Observer
// directly; searches are observed through a fresh SearchMonitor per call.
package metrics
