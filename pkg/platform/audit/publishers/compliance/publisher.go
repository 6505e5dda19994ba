// Package compliance provides a fail-closed audit publisher for ledger and
// review events.
//
// Emit is synchronous. Call it inside the unit of work that performs the
// change: with the outbox store the event commits or rolls back with it, and
// an Emit error must fail the operation.
//
// Use for: profile_*, charity_*, donation_recorded
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "chariblock/pkg/platform/audit"
)

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes a compliance event to the audit store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	if audit.AuditEvent(event.Action).Category() != audit.CategoryCompliance {
		return fmt.Errorf("%s is not a compliance event", event.Action)
	}
	event.Category = audit.CategoryCompliance
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "compliance audit failed",
				"action", event.Action,
				"wallet", event.Wallet,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	return nil
}
