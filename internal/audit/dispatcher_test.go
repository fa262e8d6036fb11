package audit

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDisabledDispatcherIsNilAndSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "e"})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
}

func TestDropIfFullDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if d.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestBlockIfFullWaitsForSpace(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: false}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestBlockIfFullHonorsContext(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Emit(context.Background(), Event{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	d.Emit(ctx, Event{EventType: "e3"})
	if time.Since(start) > time.Second {
		t.Fatal("emit should give up when ctx is done")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected the abandoned event to count as dropped, got %d", d.Dropped())
	}
}

func TestCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, &countingSink{})

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})
	if d.Dropped() != 0 {
		t.Fatalf("emit after close must be ignored, not dropped; got %d", d.Dropped())
	}
}

func TestDeliveryPreservesEmitOrder(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for _, typ := range []string{"session_created", "session_extended", "session_destroyed"} {
		d.Emit(context.Background(), Event{EventType: typ})
	}
	d.Close()

	for _, want := range []string{"session_created", "session_extended", "session_destroyed"} {
		if got := (<-sink.Events()).EventType; got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestJSONWriterSinkNilWriter(t *testing.T) {
	NewJSONWriterSink(nil).Emit(context.Background(), Event{EventType: "e"})
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		Timestamp: time.Now().UTC(),
		EventType: "session_created",
		UserID:    "u1",
		TokenID:   "abc123",
		Success:   true,
	})
	sink.Emit(context.Background(), Event{EventType: "session_destroyed"})

	out := buf.String()
	if strings.Count(out, "\n") != 2 {
		t.Fatalf("expected two lines, got %q", out)
	}
	for _, want := range []string{`"event_type":"session_created"`, `"user_id":"u1"`, `"token_id":"abc123"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %q", want, out)
		}
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	sink := NewChannelSink(0)
	sink.Emit(context.Background(), Event{EventType: "e"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "e" {
			t.Fatalf("unexpected event %q", ev.EventType)
		}
	default:
		t.Fatal("expected buffered event")
	}
}
