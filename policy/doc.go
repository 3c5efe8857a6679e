// Package policy evaluates authorization policies against a principal and an
// optional resource.
//
// A [Policy] is either a conjunction of [Requirement] values or a role
// membership list. Evaluation is fail-closed: a requirement that cannot
// resolve its inputs (missing claim, unparsable date, absent resource,
// permission lookup failure) is not satisfied. Callers receive [Allow] or
// [Deny] only; the failing requirement is reported to the evaluator's logger.
//
// The only variant performing I/O is [Permission], which reads role grants
// from a [PermissionSource] on every evaluation.
package policy
