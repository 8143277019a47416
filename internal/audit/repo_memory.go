package audit

import (
	"context"
	"sync"
)

// MemoryRepo keeps the campaign audit trail in process. Used by tests and by
// handlers under test.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// ListByCampaign returns the owner's events for campaignID, newest first.
// Ties on CreatedAt keep reverse append order.
func (r *MemoryRepo) ListByCampaign(ctx context.Context, userID, campaignID string, limit int) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0)
	for i := len(r.events) - 1; i >= 0; i-- {
		e := r.events[i]
		if e.UserID != userID || e.CampaignID != campaignID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Events returns every appended event in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByActor filters Events to one actor.
func (r *MemoryRepo) ByActor(actor string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Actor == actor {
			out = append(out, e)
		}
	}
	return out
}
