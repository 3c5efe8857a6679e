// Package middleware exposes net/http adapters that authenticate bearer access
// tokens and enforce named goAuthz policies.
//
// # Guards
//
//   - [Authenticate] verifies the Authorization header and stores the token's
//     principal in the request context.
//   - [RequirePolicy] evaluates a named policy for the authenticated principal.
//   - [RequireResourcePolicy] does the same against a resource resolved from
//     the request.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication or policy logic itself.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Reveal why a token was rejected in the response body.
package middleware
