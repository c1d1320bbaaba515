// Package notify delivers [authcore.Notification] messages: reset links,
// verification links and reset confirmations.
//
// [SMTP] sends mail through gomail with settings read from the environment.
// [Log] writes notifications to a zerolog logger for local runs. [Async]
// wraps either one so the Engine never waits on delivery.
//
// # What this package must NOT do
//
//   - Decide whether a notification is sent. The Engine does.
//   - Surface delivery errors to HTTP callers.
package notify
