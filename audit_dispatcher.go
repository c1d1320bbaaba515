package authcore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// auditDispatcher hands events to the sink from a single goroutine. With
// DropIfFull a full buffer drops the event; otherwise Emit blocks until there
// is room, the caller's context ends or the dispatcher closes.
type auditDispatcher struct {
	sink       AuditSink
	logger     zerolog.Logger
	dropIfFull bool

	events  chan AuditEvent
	stop    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once

	closing atomic.Bool
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger zerolog.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &auditDispatcher{
		sink:       sink,
		logger:     logger,
		dropIfFull: cfg.DropIfFull,
		events:     make(chan AuditEvent, max(cfg.BufferSize, 1)),
		stop:       make(chan struct{}),
	}
	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *auditDispatcher) loop() {
	defer d.stopped.Done()
	for {
		select {
		case ev := <-d.events:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.events:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

// deliver isolates the loop from a panicking sink.
func (d *auditDispatcher) deliver(ev AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Error().Interface("panic", r).Str("event", ev.EventType).Msg("audit sink panicked")
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

func (d *auditDispatcher) Emit(ctx context.Context, ev AuditEvent) {
	if d == nil || d.closing.Load() {
		return
	}

	if d.dropIfFull {
		select {
		case d.events <- ev:
		case <-d.stop:
		default:
			if n := d.dropped.Add(1); n&(n-1) == 0 {
				d.logger.Warn().Uint64("dropped", n).Msg("audit buffer full, dropping events")
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.events <- ev:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

// Close rejects further events, then blocks until the buffered ones reached
// the sink.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Failed counts events whose sink call panicked.
func (d *auditDispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}
