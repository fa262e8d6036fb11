package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event describes one session lifecycle step. TokenID is a fingerprint of
// the session token; the token itself is never recorded.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id,omitempty"`
	TokenID   string    `json:"token_id,omitempty"`
	// IP is the client address attached to the request context, if any.
	IP       string            `json:"ip,omitempty"`
	Success  bool              `json:"success"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Sink consumes events. The dispatcher calls Emit from one goroutine, but a
// sink shared between engines must tolerate concurrent calls.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink forwards events to a buffered channel read through
// [ChannelSink.Events]. A full channel blocks Emit until ctx ends.
type ChannelSink struct {
	events chan Event
}

// NewChannelSink returns a ChannelSink holding up to buffer events
// (at least one).
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the channel events are delivered on.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink encodes each event as a single JSON line. Encoding errors
// and write errors are ignored.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriterSink returns a sink writing to w. A nil w yields a sink that
// discards events.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{}
	}
	return &JSONWriterSink{enc: json.NewEncoder(w)}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	_ = s.enc.Encode(event)
	s.mu.Unlock()
}
