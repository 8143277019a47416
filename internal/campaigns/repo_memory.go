package campaigns

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voiceagents/internal/calls"
)

// MemoryRepo is an in-memory campaigns repository useful for tests. It also
// keeps the call counters for calls.MemoryRepo.
type MemoryRepo struct {
	mu        sync.Mutex
	campaigns map[string]Campaign
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{campaigns: map[string]Campaign{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; ok {
		return fmt.Errorf("campaign %s already exists", c.ID)
	}
	r.campaigns[c.ID] = c
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) GetForUser(ctx context.Context, userID, id string) (Campaign, error) {
	c, err := r.Get(ctx, id)
	if err != nil || c.UserID != userID {
		return Campaign{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Campaign, error) {
	out := r.filter(func(c Campaign) bool { return c.UserID == userID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) ListSchedulable(ctx context.Context) ([]Campaign, error) {
	out := r.filter(Schedulable)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) filter(keep func(Campaign) bool) []Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Campaign, 0)
	for _, c := range r.campaigns {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, id string, from []State, u StatusUpdate) (Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return Campaign{}, ErrNotFound
	}
	if !matchesAny(c, from) {
		return Campaign{}, fmt.Errorf("%w: campaign is %s", ErrInvalidTransition, c.Status)
	}
	c = applyStatus(c, u)
	r.campaigns[id] = c
	return c, nil
}

func (r *MemoryRepo) ResetDailyCalls(ctx context.Context, id string, at time.Time) error {
	return r.mutate(id, func(c *Campaign) {
		c.CurrentDailyCalls = 0
		c.UpdatedAt = at
	})
}

func (r *MemoryRepo) Touch(ctx context.Context, id string, lastExecutionAt time.Time, nextCallAt *time.Time) error {
	return r.mutate(id, func(c *Campaign) {
		at := lastExecutionAt
		c.LastExecutionAt = &at
		c.NextCallAt = nextCallAt
		c.UpdatedAt = lastExecutionAt
	})
}

func (r *MemoryRepo) mutate(id string, fn func(*Campaign)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return ErrNotFound
	}
	fn(&c)
	r.campaigns[id] = c
	return nil
}

// Put stores c as-is, replacing any existing row. Test helper.
func (r *MemoryRepo) Put(c Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
}

// RecordAttempt implements calls.CampaignLedger.
func (r *MemoryRepo) RecordAttempt(ctx context.Context, campaignID string, at time.Time) (int, error) {
	var daily int
	err := r.mutate(campaignID, func(c *Campaign) {
		c.TotalCallsMade++
		c.CurrentDailyCalls++
		c.UpdatedAt = at
		daily = c.CurrentDailyCalls
	})
	return daily, err
}

// ApplyCounters implements calls.CampaignLedger.
func (r *MemoryRepo) ApplyCounters(ctx context.Context, campaignID string, d calls.CounterDelta) error {
	return r.mutate(campaignID, func(c *Campaign) {
		c.TotalCallsAnswered += d.Answered
		c.Interested += d.Interested
		c.NotInterested += d.NotInterested
		c.Callback += d.Callback
		c.DoNotCall += d.DoNotCall
	})
}

// OwnerOf implements calls.CampaignLedger.
func (r *MemoryRepo) OwnerOf(ctx context.Context, campaignID string) (string, error) {
	c, err := r.Get(ctx, campaignID)
	if err != nil {
		return "", calls.ErrNotFound
	}
	return c.UserID, nil
}

var _ calls.CampaignLedger = (*MemoryRepo)(nil)
