// Package internaldefs names the authcore counters and the latency histogram
// once, so the Prometheus and OpenTelemetry exporters publish identical
// names and bucket bounds.
//
// # What this package must NOT do
//
//   - Import an exporter package.
//   - Perform I/O.
package internaldefs
