// Package totp implements RFC 6238 time-based one-time passwords from
// primitives: secret generation, an RFC 4648 Base32 codec, HOTP dynamic
// truncation and a ±1 step validation window.
//
// # Architecture boundaries
//
// Everything here is pure computation over its inputs plus crypto/rand for
// secret generation. Replay tracking of consumed steps belongs to the engine;
// [Match] reports the matched step so callers can enforce it.
//
// # What this package must NOT do
//
//   - Perform I/O or keep state between calls.
//   - Return errors from Validate; structural failures are a plain false.
package totp
