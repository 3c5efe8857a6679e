// Package rate provides the attempt counters behind engine throttling.
//
// # Window semantics
//
// [Redis] keeps fixed-window counters: INCR plus EXPIRE on the first hit of a
// window. [Local] keeps an in-process token bucket per key on
// golang.org/x/time/rate and suits single-instance deployments and tests.
//
// Both answer the same three questions: is key still under its limit
// ([Redis.Check]), count one more attempt ([Redis.Record]), and forget key
// after a success ([Redis.Reset]).
//
// # What this package must NOT do
//
//   - Decide which operations are throttled (the engine does).
//   - Be imported outside the goAuthz module.
package rate
