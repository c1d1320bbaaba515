package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/rs/zerolog"
)

const defaultSendTimeout = 30 * time.Second

// AsyncConfig tunes Async.
type AsyncConfig struct {
	// BufferSize bounds queued notifications. Extra ones are dropped.
	BufferSize int
	Workers    int
	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration
}

// Async queues notifications for a pool of workers so callers return as
// soon as the message is enqueued. Delivery failures are logged.
type Async struct {
	next    authcore.Notifier
	logger  zerolog.Logger
	timeout time.Duration

	ch        chan authcore.Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAsync starts the workers. Call Close to flush and stop them.
func NewAsync(next authcore.Notifier, cfg AsyncConfig, logger zerolog.Logger) *Async {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}

	a := &Async{
		next:    next,
		logger:  logger.With().Str("component", "notify").Logger(),
		timeout: cfg.SendTimeout,
		ch:      make(chan authcore.Notification, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	a.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go a.run()
	}
	return a
}

func (a *Async) run() {
	defer a.wg.Done()
	for {
		select {
		case n := <-a.ch:
			a.deliver(n)
		case <-a.done:
			for {
				select {
				case n := <-a.ch:
					a.deliver(n)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(n authcore.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.next.Notify(ctx, n); err != nil {
		a.failed.Add(1)
		a.logger.Error().Err(err).
			Str("kind", string(n.Kind)).
			Str("email", n.Email).
			Msg("notification delivery failed")
	}
}

// Notify enqueues n. It never blocks and never fails: a full queue or a
// closed notifier drops the message.
func (a *Async) Notify(_ context.Context, n authcore.Notification) error {
	if a.closed.Load() {
		a.dropped.Add(1)
		return nil
	}
	select {
	case a.ch <- n:
	case <-a.done:
		a.dropped.Add(1)
	default:
		a.dropped.Add(1)
		a.logger.Warn().Str("kind", string(n.Kind)).Msg("notification queue full, dropped")
	}
	return nil
}

// Close stops accepting notifications and waits for queued ones.
func (a *Async) Close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		close(a.done)
		a.wg.Wait()
	})
}

// Dropped returns how many notifications were never handed to a worker.
func (a *Async) Dropped() uint64 { return a.dropped.Load() }

// Failed returns how many deliveries returned an error.
func (a *Async) Failed() uint64 { return a.failed.Load() }
