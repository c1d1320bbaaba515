// Package prometheus renders authcore metrics in the Prometheus text
// exposition format.
//
// [New] reads an [authcore.Engine] and [Exporter.Handler] serves the result,
// typically mounted at /metrics through httpapi.Options. Counters are named
// authcore_*_total and the request latency histogram is
// authcore_request_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
