package softoken

import "github.com/MrEthical07/softoken/internal/audit"

// AuditEvent is one record of a session lifecycle operation. TokenID is a
// fingerprint of the token; the token itself is never emitted.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
// Implementations must be safe for use from that goroutine.
type AuditSink = audit.Sink

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line to an io.Writer.
type JSONWriterSink = audit.JSONWriterSink

var (
	// NewChannelSink returns a ChannelSink with the given buffer size.
	NewChannelSink = audit.NewChannelSink
	// NewJSONWriterSink returns a JSONWriterSink writing to w.
	NewJSONWriterSink = audit.NewJSONWriterSink
)
