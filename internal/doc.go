// Package internal contains helper utilities that are intentionally private to authcore,
// including secure random generation, token hashing, anti-forgery token signing,
// and at-rest sealing of second-factor secrets.
//
// # Sub-packages
//
//   - rate: Redis-backed named-bucket rate limiter
//   - stores: short-lived Redis markers for password-reset previews
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
