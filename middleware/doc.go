// Package middleware adapts [authcore.Engine] to net/http. Each middleware is
// one enforcement layer; routers stack them outermost first.
//
// # Layers
//
//   - [ClientInfo] copies the client IP and User-Agent into the context.
//   - [CSRF] enforces the double-submit anti-forgery token on mutating methods.
//   - [Throttle] applies a named rate-limit bucket.
//   - [Authenticate] resolves the session cookie into a Principal.
//   - [RequireActive] logs out principals whose account was disabled.
//   - [RequireSecondFactor] rejects sessions that have not completed the second factor.
//   - [Authorize] checks one or more operations of the rule table.
//   - [RequestAudit] hands a redacted request record to a [RequestSink].
//
// Failures are rendered by [WriteError] as {"message","error_code","status"}.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication or authorization logic itself.
//
// # What this package must NOT do
//
//   - Access Redis or the account store directly (Engine handles I/O).
//   - Decide permissions beyond what Engine.Authorize returns.
//   - Log request bodies before redaction.
package middleware
