// Package stores provides Redis-backed, short-lived markers for
// security-sensitive authentication flows.
//
// # Design
//
// The reset preview marker is written with SET NX and a TTL, so exactly one
// caller wins the first view of a token. The marker is independent of the
// durable reset-token record: consuming the preview never consumes the token.
//
// # What this package must NOT do
//
//   - Import authcore or any sibling internal package.
//   - Store plaintext tokens (callers pass hashes).
package stores
