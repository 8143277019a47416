package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - user_id is required; every campaign action belongs to an owner.
// - Audit capture is best-effort; never block a campaign or call flow on it.
type Event struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Type EventType `json:"type" db:"type"`

	// Actor is "user" for API actions and "engine" for scheduler actions.
	Actor     string `json:"actor,omitempty" db:"actor"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`
	CallID     string `json:"call_id,omitempty" db:"call_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCampaignCreated       EventType = "campaign_created"
	EventTypeCampaignStatusChanged EventType = "campaign_status_changed"
	EventTypeCallOutcomeRecorded   EventType = "call_outcome_recorded"
	EventTypeManualCallInitiated   EventType = "manual_call_initiated"
)

const (
	ActorUser   = "user"
	ActorEngine = "engine"
)
