// Package rate provides the Redis-backed fixed-window limiter behind every
// named throttle bucket (login, registration, two-factor, api).
//
// # Window semantics
//
// Each hit runs one Lua script: INCR, PEXPIRE on the first hit, PTTL. The
// counter and its expiry are therefore set atomically, and the check happens
// on the value the same script returned (no read-then-write race).
//
// Keys: <prefix>:<bucket>:<key>, where key is a client IP or an account id.
//
// # What this package must NOT do
//
//   - Decide which key a request is bucketed by (the caller does).
//   - Be imported outside the authcore module.
package rate
