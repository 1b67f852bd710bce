package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher hands events to a sink on one background goroutine. Emit never
// calls the sink directly.
type Dispatcher struct {
	cfg  Config
	sink Sink
	now  func() time.Time

	// mu guards queue against close while senders are active. Emit holds
	// the read side for the duration of its send.
	mu     sync.RWMutex
	queue  chan Event
	closed bool
	idle   chan struct{}

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher. It returns nil when auditing is disabled;
// all methods are safe on a nil dispatcher.
func NewDispatcher(cfg Config, sink Sink, now func() time.Time) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if now == nil {
		now = time.Now
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		now:   now,
		queue: make(chan Event, max(cfg.BufferSize, 1)),
		idle:  make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.idle)
	for ev := range d.queue {
		d.sink.Emit(context.Background(), ev)
		d.delivered.Add(1)
	}
}

// Emit queues event, stamping its timestamp when unset. With DropIfFull a
// full queue drops the event; otherwise Emit waits for room or for ctx.
// Events emitted after Close are discarded without being counted.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = d.now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.cfg.DropIfFull {
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
		d.dropped.Add(1)
	}
}

// Close delivers everything already queued and then stops the dispatcher.
// It is idempotent.
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
	<-d.idle
}

// Dropped counts events lost to a full queue or a cancelled context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered counts events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}
