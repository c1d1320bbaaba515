// Package password implements password hashing and verification with Argon2id defaults
// and verify-only support for imported bcrypt hashes.
//
// # Output format
//
// New hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Chain] routes verification to the scheme that recognises the stored value.
// Hashes from a legacy scheme, or Argon2id hashes with weaker parameters, report
// NeedsRehash so the caller can re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, confirmation) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Import any other authcore package.
//   - Log plaintext passwords.
package password
