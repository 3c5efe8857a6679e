package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultCloseTimeout = time.Second

// Config controls dispatcher buffering and event stamping.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// CloseTimeout bounds how long Close lets the sink drain before the
	// sink context is cancelled. Zero means one second.
	CloseTimeout time.Duration

	// Now stamps events emitted without a Timestamp. Defaults to time.Now.
	Now func() time.Time

	// Annotate copies request-scoped fields from the emitting context into
	// the event before it leaves the caller's goroutine.
	Annotate func(ctx context.Context, event *Event)
}

// Dispatcher stamps audit events and forwards them to a sink from a single
// goroutine, preserving emit order.
type Dispatcher struct {
	cfg  Config
	sink Sink

	ch   chan Event
	done chan struct{}

	// sinkCtx is handed to the sink and cancelled when Close gives up
	// waiting, so a sink blocked on a full channel cannot hang shutdown.
	sinkCtx    context.Context
	cancelSink context.CancelFunc

	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher, or returns nil when cfg is disabled.
// All methods are no-ops on a nil dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = defaultCloseTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	sinkCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:        cfg,
		sink:       sink,
		ch:         make(chan Event, cfg.BufferSize),
		done:       make(chan struct{}),
		sinkCtx:    sinkCtx,
		cancelSink: cancel,
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(d.sinkCtx, event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(d.sinkCtx, event)
				default:
					return
				}
			}
		}
	}
}

// Emit stamps event and queues it. With DropIfFull a full buffer drops the
// event and counts it; otherwise Emit waits for room, ctx or Close.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = d.cfg.Now().UTC()
	}
	if d.cfg.Annotate != nil {
		d.cfg.Annotate(ctx, &event)
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close stops accepting events and flushes the buffer to the sink. If the
// sink has not finished within CloseTimeout its context is cancelled and
// the remaining events are offered once more on that cancelled context.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)

		stopped := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(stopped)
		}()

		timer := time.NewTimer(d.cfg.CloseTimeout)
		defer timer.Stop()
		select {
		case <-stopped:
		case <-timer.C:
			d.cancelSink()
			<-stopped
		}
		d.cancelSink()
	})
}

// Dropped reports how many events DropIfFull discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
