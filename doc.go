// Package goAuthz provides an identity and policy authorization engine: password
// login with an optional TOTP second factor, HS256 access tokens, rotating
// opaque refresh tokens held in Redis, and a composable policy evaluator.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goAuthz is the public surface. It exposes [Engine], [Builder], [Config] and
// value types (LoginResult, MetricsSnapshot, etc.). Flow orchestration,
// throttling, replay tracking and audit dispatch live under internal/ and are
// never exported. Token, TOTP and policy primitives live in their own
// packages (jwt, refresh, totp, policy) and can be used without an Engine.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Reveal which credential check failed: every login and second-factor
//     failure is [ErrAuthentication], every rejected token is [ErrToken].
//   - Import any sub-package that re-imports goAuthz (no import cycles).
//
// # Persistence
//
// Accounts are read and written through [CredentialStore]; resources for
// ownership checks through [ResourceStore]. store/memory and store/pg provide
// implementations.
package goAuthz
