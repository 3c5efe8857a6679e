// Package stores provides Redis-backed, short-lived records for
// security-sensitive authentication flows.
//
// # Design
//
// [TOTPReplayGuard] remembers the highest TOTP time step accepted per user so
// a code cannot be used twice inside its validity window. The compare-and-set
// runs as one Lua script.
//
// # What this package must NOT do
//
//   - Import goAuthz or any sibling internal package.
//   - Store TOTP secrets or codes.
package stores
