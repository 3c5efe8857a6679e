// Package audit relays security-relevant engine outcomes to a sink without
// blocking the request path.
//
// The [Dispatcher] owns a buffered channel and one goroutine. With DropIfFull
// set, a full buffer drops the event and increments [Dispatcher.Dropped];
// otherwise Emit waits for room or for the caller's context.
//
// This package does not decide which events exist. The engine does.
package audit
