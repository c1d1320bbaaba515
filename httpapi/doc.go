// Package httpapi mounts the authentication and user-administration
// endpoints of an [authcore.Engine] on a chi router.
//
// # Route groups
//
//   - Guest: /login, /register, password recovery and e-mail verification,
//     each behind its throttle bucket.
//   - Session: /logout and /2fa/verify accept login-pending sessions.
//   - High security: /user/... and /users/... additionally pass the
//     second-factor gate; /users/... then checks the operation table.
//
// Every mutating route requires the double-submit anti-forgery header.
//
// # Architecture boundaries
//
// Handlers decode and validate JSON, call one Engine method and render the
// result. All policy lives in the Engine and in package middleware.
//
// # What this package must NOT do
//
//   - Make authorization decisions outside [middleware.Authorize] and the Engine.
//   - Echo internal error detail to clients.
package httpapi
