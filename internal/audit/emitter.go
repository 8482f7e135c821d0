package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/straja-ai/ukredact/internal/redact"
)

// Sink consumes audit events (file, webhook, etc.).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Recorder counts what happens to events after Emit. *telemetry.Provider
// implements it.
type Recorder interface {
	RecordAuditDrop(ctx context.Context)
	RecordAuditDelivery(ctx context.Context, sink string, failed bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuditDrop(context.Context)                   {}
func (nopRecorder) RecordAuditDelivery(context.Context, string, bool) {}

// EmitterConfig controls queue sizing and shutdown. Zero values take the
// defaults: 1000 queued events, one worker, a 2s drain.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
	Recorder        Recorder
}

func (c EmitterConfig) withDefaults() EmitterConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 2 * time.Second
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	return c
}

// Emitter hands events to sinks from a bounded queue so that analysis never
// waits on audit I/O. A nil *Emitter is valid and discards everything.
type Emitter struct {
	cfg   EmitterConfig
	sinks []Sink
	queue chan *Event
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewEmitter starts cfg.Workers goroutines draining the queue into sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	cfg = cfg.withDefaults()
	e := &Emitter{
		cfg:   cfg,
		sinks: sinks,
		queue: make(chan *Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(cfg.Workers)
	for range cfg.Workers {
		go func() {
			defer wg.Done()
			for ev := range e.queue {
				e.fanOut(ev)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(e.done)
	}()
	return e
}

// Emit queues ev. When the queue is full or the emitter is closed the event
// is dropped and counted.
func (e *Emitter) Emit(ctx context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.closed {
		select {
		case e.queue <- ev:
			return
		default:
		}
	}
	e.cfg.Recorder.RecordAuditDrop(ctx)
	slog.Debug("audit event dropped", "request_id", ev.RequestID, "closed", e.closed)
}

// Close stops intake, waits up to the shutdown timeout for queued events,
// then closes the sinks.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-e.done:
	case <-ctx.Done():
		slog.Warn("audit queue not drained before shutdown", "pending", len(e.queue))
	}
	for _, s := range e.sinks {
		if err := s.Close(ctx); err != nil {
			slog.Warn("audit sink close failed", "sink", s.Name(), "err", redact.String(err.Error()))
		}
	}
}

func (e *Emitter) fanOut(ev *Event) {
	ctx := context.Background()
	for _, s := range e.sinks {
		err := s.Deliver(ctx, ev)
		e.cfg.Recorder.RecordAuditDelivery(ctx, s.Name(), err != nil)
		if err != nil {
			slog.Warn("audit delivery failed", "sink", s.Name(), "request_id", ev.RequestID, "err", redact.String(err.Error()))
		}
	}
}
