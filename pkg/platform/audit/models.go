package audit

import (
	"context"
	"time"

	id "chariblock/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers ledger and review events. They are written
	// fail-closed, inside the same unit of work as the change they describe.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication events. They are buffered and
	// written asynchronously; losing one never fails a request.
	CategorySecurity EventCategory = "security"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	Action    string
	// Wallet is the wallet the action concerns (donor, creator, session owner).
	Wallet    id.WalletAddress
	CharityID id.CharityID
	// Subject identifies the affected record (tx hash, charity id, username).
	Subject   string
	Amount    string
	Status    string
	Reason    string
	IP        string
	RequestID string
	// ActorID is set when an admin acts on someone else's record.
	ActorID string
}

type AuditEvent string

const (
	EventProfileCreated     AuditEvent = "profile_created"
	EventProfileUpdated     AuditEvent = "profile_updated"
	EventCharityCreated     AuditEvent = "charity_created"
	EventCharityApproved    AuditEvent = "charity_approved"
	EventCharityRejected    AuditEvent = "charity_rejected"
	EventDonationRecorded   AuditEvent = "donation_recorded"
	EventSessionCreated     AuditEvent = "session_created"
	EventSessionRevoked     AuditEvent = "session_revoked"
	EventAuthFailed         AuditEvent = "auth_failed"
	EventCredentialsCreated AuditEvent = "credentials_created"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventProfileCreated:   CategoryCompliance,
	EventProfileUpdated:   CategoryCompliance,
	EventCharityCreated:   CategoryCompliance,
	EventCharityApproved:  CategoryCompliance,
	EventCharityRejected:  CategoryCompliance,
	EventDonationRecorded: CategoryCompliance,

	EventSessionCreated:     CategorySecurity,
	EventSessionRevoked:     CategorySecurity,
	EventAuthFailed:         CategorySecurity,
	EventCredentialsCreated: CategorySecurity,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategorySecurity so they are never fail-closed.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategorySecurity
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
