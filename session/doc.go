// Package session provides Redis-backed session persistence and compact binary session
// encoding for the cookie-based login flow.
//
// # Binary encoding
//
// Sessions are stored as a versioned binary value keyed by the opaque session ID. The
// version byte leads so later layouts can be migrated on read.
//
// # Lifetimes
//
// A session key expires after the idle window and slides on each [Store.Get]. It never
// outlives the session's absolute ExpiresAt. Remember-me sessions use ExpiresAt only.
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations) and the [Session] model. It does NOT
// load accounts, evaluate permissions, or decide whether a second factor is required.
// Those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authcore or permission (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store secrets in [Session] fields.
package session
