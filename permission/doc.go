// Package permission keeps an in-process role → permission grant table.
//
// Permission names are assigned bit positions by a [Registry]; each role holds a
// 512-bit [Mask] of granted permissions. Unlike a frozen registry, [Grants]
// stays mutable for the life of the process: a grant or revocation is visible
// to the next [Grants.PermissionsForRoles] call, which is what the policy
// evaluator reads on every Permission check.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import goAuthz or jwt.
//   - Cache resolved permissions across calls.
package permission
