package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull makes Emit discard events instead of waiting when the
	// buffer is full.
	DropIfFull bool
}

// Dispatcher relays events to a [Sink] from a single goroutine, so the sink
// sees events in the order they were accepted and never runs on a request
// path.
//
// Delivery is at most once. An event is lost, and counted by [Dispatcher.Dropped],
// when the buffer is full and DropIfFull is set, or when the caller's
// context ends while Emit waits for room. Every event accepted before
// [Dispatcher.Close] reaches the sink before Close returns; events emitted
// after Close are ignored.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	dropIfFull bool

	// mu guards closed and the send side of queue.
	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher starts the delivery goroutine. It returns nil when cfg is
// disabled; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, max(cfg.BufferSize, 1)),
		dropIfFull: cfg.DropIfFull,
		stopped:    make(chan struct{}),
	}
	go d.deliver()
	return d
}

func (d *Dispatcher) deliver() {
	defer close(d.stopped)
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit hands event to the delivery goroutine.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until the buffer has been flushed
// to the sink. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	<-d.stopped
}

// Dropped returns how many events never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
