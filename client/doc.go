// Package client is a Go client for the authcore HTTP surface.
//
// [Container] holds the non-authoritative auth snapshot of one client
// instance. It moves from checking to authenticated or unauthenticated once
// per bootstrap, and every later transition is tied to a generation so a
// response that started before a logout cannot bring the old identity back.
//
// [Client] keeps the session and anti-forgery cookies in a cookie jar,
// echoes the anti-forgery token on mutating calls, refreshes it once on 419
// and clears the snapshot on any 401.
//
// [Guard] evaluates route requirements against the snapshot with the same
// [permission.Rule] semantics the server enforces. Its decisions only drive
// navigation; the server re-checks every call.
package client
