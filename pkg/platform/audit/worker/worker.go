package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chariblock/internal/platform/kafka"
	auditpg "chariblock/pkg/platform/audit/store/postgres"
	"chariblock/pkg/platform/circuit"
)

// OutboxSource reads and acknowledges outbox rows.
type OutboxSource interface {
	FetchUnpublished(ctx context.Context, limit int) ([]auditpg.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// TxRunner runs fn in one database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sink receives relayed events.
type Sink interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay moves committed audit events from the outbox to the audit stream.
// Delivery is at-least-once: a crash between Publish and commit republishes
// the batch, and consumers dedupe on the payload id.
type Relay struct {
	source   OutboxSource
	tx       TxRunner
	sink     Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func NewRelay(source OutboxSource, tx TxRunner, sink Sink, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		source:   source,
		tx:       tx,
		sink:     sink,
		breaker:  circuit.New("audit-stream", circuit.WithFailureThreshold(3)),
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. While the breaker is open it polls at
// ten times the interval.
func (r *Relay) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		n, err := r.RelayOnce(ctx)
		next := r.interval
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return ctx.Err()
		case err != nil:
			useFallback, change := r.breaker.RecordFailure()
			if change.Opened {
				r.logger.WarnContext(ctx, "audit stream circuit opened", "error", err)
			}
			if useFallback {
				next = 10 * r.interval
			}
		default:
			if _, change := r.breaker.RecordSuccess(); change.Closed {
				r.logger.InfoContext(ctx, "audit stream circuit closed")
			}
			// Keep draining while there is a backlog
			if n == r.batch {
				next = 0
			}
		}
		timer.Reset(next)
	}
}

// RelayOnce publishes one batch and marks it published. Returns the number
// of events relayed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var relayed int
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.source.FetchUnpublished(ctx, r.batch)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		msgs := make([]kafka.Message, len(entries))
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			msgs[i] = kafka.Message{
				Key:     e.AggregateID,
				Value:   e.Payload,
				Headers: map[string]string{"action": e.Action},
			}
			ids[i] = e.ID
		}
		if err := r.sink.Publish(ctx, msgs...); err != nil {
			return err
		}
		relayed = len(entries)
		return r.source.MarkPublished(ctx, ids, time.Now().UTC())
	})
	if err != nil {
		return 0, err
	}
	return relayed, nil
}
