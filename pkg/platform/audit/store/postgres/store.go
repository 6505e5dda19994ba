package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "chariblock/pkg/domain"
	audit "chariblock/pkg/platform/audit"
	txcontext "chariblock/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append joins the caller's transaction, so a rolled-back donation leaves
// no audit row behind.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Payload is the JSON structure stored in the outbox and published to Kafka.
type Payload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Wallet    string `json:"wallet,omitempty"`
	CharityID int64  `json:"charityId,omitempty"`
	Subject   string `json:"subject,omitempty"`
	Amount    string `json:"amount,omitempty"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
	IP        string `json:"ip,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload := Payload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Action:    event.Action,
		Wallet:    event.Wallet.String(),
		CharityID: int64(event.CharityID),
		Subject:   event.Subject,
		Amount:    event.Amount,
		Status:    event.Status,
		Reason:    event.Reason,
		IP:        event.IP,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	// Partition by charity when there is one so a charity's events stay ordered
	aggregateID := event.Wallet.String()
	if event.CharityID != 0 {
		aggregateID = event.CharityID.String()
	}
	if aggregateID == "" {
		aggregateID = eventID.String()
	}

	query := `
		INSERT INTO audit_outbox (id, category, action, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Conn(ctx, s.db).ExecContext(ctx, query,
		eventID,
		string(category),
		event.Action,
		aggregateID,
		payloadBytes,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `
		SELECT payload
		FROM audit_outbox
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var p Payload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode audit payload: %w", err)
		}
		events = append(events, p.toEvent())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func (p Payload) toEvent() audit.Event {
	ts, _ := time.Parse(time.RFC3339Nano, p.Timestamp)
	return audit.Event{
		Category:  audit.EventCategory(p.Category),
		Timestamp: ts,
		Action:    p.Action,
		Wallet:    id.WalletAddress(p.Wallet),
		CharityID: id.CharityID(p.CharityID),
		Subject:   p.Subject,
		Amount:    p.Amount,
		Status:    p.Status,
		Reason:    p.Reason,
		IP:        p.IP,
		RequestID: p.RequestID,
		ActorID:   p.ActorID,
	}
}

// OutboxEntry is an unpublished outbox row.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID string
	Action      string
	Payload     []byte
}

// FetchUnpublished returns up to limit unpublished entries, oldest first.
// Rows are locked with SKIP LOCKED so concurrent relays split the backlog;
// call it inside a transaction and MarkPublished in the same one.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate_id, action, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.Action, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps entries as relayed.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]string, len(ids))
	for i, v := range ids {
		args[i] = v.String()
	}
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2::uuid[])`
	if _, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, query, at, args); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
