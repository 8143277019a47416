package events

import (
	"context"
	"sync"
	"time"
)

// Type is the routing key an event is published under.
type Type string

const (
	CampaignStatusChanged Type = "campaign.status_changed"
	CampaignCallAttempted Type = "campaign.call_attempted"
	CallOutcomeRecorded   Type = "call.outcome_recorded"
)

// Event is a fire-and-forget notification about campaign activity.
type Event struct {
	Type       Type           `json:"type"`
	UserID     string         `json:"user_id,omitempty"`
	CampaignID string         `json:"campaign_id,omitempty"`
	CallID     string         `json:"call_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
// Callers log and ignore publish errors.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory. Useful for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
