package goAuthz

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goAuthz/internal/audit"
)

// AuditEvent is one security-relevant outcome emitted by the engine. Reason
// holds the diagnostic code that returned errors deliberately omit.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs audit events through a *slog.Logger.
type SlogSink = audit.SlogSink

// NewChannelSink returns a sink buffering buffer events for [ChannelSink.Events].
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink logs events on logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return audit.NewSlogSink(logger)
}
