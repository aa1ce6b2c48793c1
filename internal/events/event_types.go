package events

import (
	"time"

	"github.com/spec-kit/clinic-crm/internal/domain"
	"github.com/spec-kit/clinic-crm/internal/ids"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIdentityRegistered EventType = "auth.identity_registered"
	EventTokenIssued        EventType = "auth.token_issued"
	EventTokensRevoked      EventType = "auth.tokens_revoked"
	EventRecordWritten      EventType = "records.written"
	EventIncentiveSynced    EventType = "incentives.synced"
)

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IdentityID int64       `json:"identity_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, identityID int64, payload interface{}) Event {
	return Event{
		ID:         ids.New(),
		Type:       eventType,
		IdentityID: identityID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// TokenIssuedPayload payload.
type TokenIssuedPayload struct {
	TokenID   int64      `json:"token_id"`
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TokensRevokedPayload payload.
type TokensRevokedPayload struct {
	Revoked int64  `json:"revoked"`
	Reason  string `json:"reason"`
}

// RecordWrittenPayload payload.
type RecordWrittenPayload struct {
	Source domain.SourceRef `json:"source"`
	Action string           `json:"action"`
}

// IncentiveSyncedPayload payload.
type IncentiveSyncedPayload struct {
	Source  domain.SourceRef `json:"source"`
	Outcome string           `json:"outcome"`
}
