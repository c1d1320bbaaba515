// Package authcore is the authentication and authorization core of a
// cookie-session web application: multi-step login with activation,
// verification and second-factor gates, Redis sessions with per-session
// second-factor state, single-use password reset, signed e-mail
// verification, named-bucket throttles and a declarative role/permission
// model with data scoping.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy with [Classify], and value types ([Identity],
// [Principal], [LoginResult]). Account and reset-token persistence are
// supplied by the caller through [AccountStore] and [ResetTokenStore]
// (see store/postgres and store/memory). HTTP concerns live in middleware/
// and httpapi/.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or session encoding details in its public API.
//   - Serialize the second-factor secret into any client-facing value.
//   - Distinguish "unknown e-mail" from "wrong password" in any result.
//   - Import any sub-package that re-imports authcore (no import cycles).
package authcore
