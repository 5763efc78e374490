// Package audit delivers audit events to a store without blocking callers.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"catalogsync-api/internal/metrics"
	"catalogsync-api/internal/model"
	"catalogsync-api/internal/obs"
)

// DefaultQueueSize is used when a non-positive size is given to NewDispatcher.
const DefaultQueueSize = 256

// writeTimeout bounds a single delivery to the writer.
const writeTimeout = 10 * time.Second

// Writer persists one audit event.
type Writer interface {
	Write(ctx context.Context, ev model.AuditEvent) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, ev model.AuditEvent) error

func (f WriterFunc) Write(ctx context.Context, ev model.AuditEvent) error { return f(ctx, ev) }

// Dispatcher is a bounded fire-and-forget queue drained by one goroutine.
// When the queue is full the incoming event is dropped and counted.
type Dispatcher struct {
	writer Writer
	queue  chan model.AuditEvent
	now    func() time.Time

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	done    chan struct{}

	recorded atomic.Uint64
	written  atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64

	log *slog.Logger
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Recorded   uint64 `json:"recorded"`
	Written    uint64 `json:"written"`
	Failed     uint64 `json:"failed"`
	Dropped    uint64 `json:"dropped"`
	QueueDepth int    `json:"queue_depth"`
	QueueSize  int    `json:"queue_size"`
}

// NewDispatcher creates a dispatcher with a queue of size events.
func NewDispatcher(w Writer, size int) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		writer: w,
		queue:  make(chan model.AuditEvent, size),
		now:    time.Now,
		done:   make(chan struct{}),
		log:    obs.Logger.With("component", "audit"),
	}
}

// Start runs the consumer goroutine. Calling Start more than once is a no-op.
func (d *Dispatcher) Start() {
	if !d.started.CompareAndSwap(false, true) {
		return
	}
	go d.consume()
}

// Record enqueues ev without blocking. It reports whether the event was accepted.
func (d *Dispatcher) Record(ev model.AuditEvent) bool {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = d.now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ev, "closed")
		return false
	}

	select {
	case d.queue <- ev:
		d.recorded.Add(1)
		return true
	default:
		d.drop(ev, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(ev model.AuditEvent, reason string) {
	d.dropped.Add(1)
	metrics.RecordAuditEvent("dropped")
	d.log.Warn("audit event dropped",
		"reason", reason,
		"action", ev.Action,
		"subject_type", ev.SubjectType,
		"target", targetOf(ev),
		"dropped_total", d.dropped.Load())
}

func (d *Dispatcher) consume() {
	defer close(d.done)
	for ev := range d.queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev model.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.writer.Write(ctx, ev); err != nil {
		d.failed.Add(1)
		metrics.RecordAuditEvent("failed")
		d.log.Error("audit write failed",
			"action", ev.Action,
			"target", targetOf(ev),
			"error", err)
		return
	}
	d.written.Add(1)
	metrics.RecordAuditEvent("written")
}

// Close stops intake and waits for queued events to be delivered or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	if !d.started.Load() {
		return nil
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Recorded:   d.recorded.Load(),
		Written:    d.written.Load(),
		Failed:     d.failed.Load(),
		Dropped:    d.dropped.Load(),
		QueueDepth: len(d.queue),
		QueueSize:  cap(d.queue),
	}
}

func targetOf(ev model.AuditEvent) string {
	if ev.Target == nil {
		return ""
	}
	return *ev.Target
}
