package authcore

import (
	"context"
	"sync"
	"sync/atomic"
)

// auditDispatcher decouples request latency from sink latency: events are
// queued on a bounded channel and delivered by a single goroutine. Close
// drains the queue before returning.
type auditDispatcher struct {
	sink    AuditSink
	queue   chan AuditEvent
	done    chan struct{}
	block   bool
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &auditDispatcher{
		sink:  sink,
		queue: make(chan AuditEvent, size),
		done:  make(chan struct{}),
		block: !cfg.DropIfFull,
	}
	go d.deliver()
	return d
}

// deliver runs until Close closes the queue; ranging over the closed channel
// drains whatever was still buffered.
func (d *auditDispatcher) deliver() {
	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
	close(d.done)
}

// Emit queues an event. In drop mode a full queue counts the event as dropped
// instead of blocking the caller; in blocking mode the caller's context bounds
// the wait. Emit after Close is a no-op.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}

	// The read lock keeps Close from closing the queue mid-send.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
	}
}

// Close stops intake, waits for the queue to drain, and returns. Safe to call
// more than once.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}

// Dropped reports how many events were discarded because the queue was full.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
