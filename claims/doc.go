// Package claims defines the Principal: an unordered multimap of claim type to
// claim values describing an authenticated subject.
//
// # Architecture boundaries
//
// Principal is produced by the engine at token issuance or decoded from a
// validated access token, and is consumed read-only by the policy evaluator.
// This package owns the flat claim-map codec used inside signed tokens.
//
// # What this package must NOT do
//
//   - Perform I/O or signature checks.
//   - Import goAuthz, jwt, or policy.
package claims
