// Package security provides a non-blocking audit publisher for
// authentication events. Events go into a bounded ring buffer drained by a
// background loop; when the buffer is full the oldest event is dropped.
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "chariblock/pkg/platform/audit"
)

// Publisher buffers security events and flushes them to the store.
type Publisher struct {
	store     audit.Store
	logger    *slog.Logger
	buffer    *RingBuffer
	batchSize int
	interval  time.Duration

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithBufferSize sets the ring buffer capacity.
func WithBufferSize(n int) Option {
	return func(p *Publisher) { p.buffer = NewRingBuffer(n) }
}

// WithFlushInterval sets how often the buffer is drained when idle.
func WithFlushInterval(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

// New creates a publisher and starts its flush loop. Call Close to drain.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:     store,
		buffer:    NewRingBuffer(1024),
		batchSize: 100,
		interval:  time.Second,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Emit enqueues event without blocking.
func (p *Publisher) Emit(_ context.Context, event audit.Event) {
	event.Category = audit.CategorySecurity
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	p.buffer.Enqueue(event)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Close flushes what is buffered and stops the loop.
func (p *Publisher) Close() error {
	p.once.Do(func() { close(p.stop) })
	<-p.done
	return nil
}

// Dropped reports how many events were lost to a full buffer.
func (p *Publisher) Dropped() int64 {
	return p.buffer.Dropped()
}

func (p *Publisher) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			p.flush()
			return
		case <-p.wake:
			p.flush()
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		batch := p.buffer.DequeueBatch(p.batchSize)
		if len(batch) == 0 {
			return
		}
		for _, event := range batch {
			if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
				p.logger.WarnContext(ctx, "security audit event dropped",
					"action", event.Action,
					"request_id", event.RequestID,
					"error", err,
				)
			}
		}
	}
}
