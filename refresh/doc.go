// Package refresh implements opaque, single-use refresh tokens.
//
// # Token format
//
// A token is 64 random bytes (512 bits) encoded as unpadded base64url. Tokens are
// never stored in plaintext: records are keyed by the hex SHA-256 of the token.
//
// # Rotation
//
// [Store.Rotate] revokes the presented record and inserts its replacement as one
// atomic step. When two callers race on the same token exactly one of them
// rotates; the other observes [ErrRevoked].
//
// # What this package must NOT do
//
//   - Import goAuthz, jwt, or policy.
//   - Decide what happens to a user after token reuse is detected.
package refresh
