// Package metrics exposes Prometheus metrics for the execution pipeline,
// the HTTP surface and the collaboration relay.
//
// All metrics live on a private registry owned by the Collector, so tests
// and multiple servers in one process never share state. Every method is
// safe to call on a nil *Collector, which records nothing.
package metrics
