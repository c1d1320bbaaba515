// Package jwt signs and verifies the short-lived links sent by e-mail, such as
// account verification links.
//
// Links are JWTs with a purpose claim and a hash of the destination address. A link
// issued for one purpose never verifies for another, and a link stops verifying once
// the account's address changes.
//
// # What this package must NOT do
//
//   - Issue session or access tokens. Sessions are server-side records.
//   - Import authcore or session.
package jwt
