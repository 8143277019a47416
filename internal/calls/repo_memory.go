package calls

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory campaign_calls repository useful for tests.
// Counter bookkeeping is forwarded to the ledger under the same lock.
type MemoryRepo struct {
	mu     sync.Mutex
	ledger CampaignLedger
	rows   []CampaignCall
	index  map[string]int

	// FailBegin, when set, is returned by BeginAttempt.
	FailBegin error
}

func NewMemoryRepo(ledger CampaignLedger) *MemoryRepo {
	return &MemoryRepo{ledger: ledger, index: map[string]int{}}
}

func (r *MemoryRepo) BeginAttempt(ctx context.Context, c CampaignCall) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailBegin != nil {
		return 0, r.FailBegin
	}
	if _, dup := r.index[c.ID]; dup {
		return 0, ErrInvalidArgument
	}
	daily, err := r.ledger.RecordAttempt(ctx, c.CampaignID, c.CreatedAt)
	if err != nil {
		return 0, err
	}
	r.index[c.ID] = len(r.rows)
	r.rows = append(r.rows, c)
	return daily, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (CampaignCall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return CampaignCall{}, ErrNotFound
	}
	return r.rows[i], nil
}

func (r *MemoryRepo) GetOwned(ctx context.Context, userID, id string) (CampaignCall, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return CampaignCall{}, err
	}
	owner, err := r.ledger.OwnerOf(ctx, c.CampaignID)
	if err != nil || owner != userID {
		return CampaignCall{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]CampaignCall, error) {
	all := r.filter(func(c CampaignCall) bool { return c.CampaignID == campaignID })
	if limit <= 0 {
		return all, nil
	}
	if offset >= len(all) {
		return []CampaignCall{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *MemoryRepo) ListAttempted(ctx context.Context, campaignID string) ([]CampaignCall, error) {
	return r.filter(func(c CampaignCall) bool {
		return c.CampaignID == campaignID && c.Status != CallStatusPending
	}), nil
}

func (r *MemoryRepo) filter(keep func(CampaignCall) bool) []CampaignCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CampaignCall, 0)
	for _, c := range r.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *MemoryRepo) Update(ctx context.Context, id string, u Update) (CampaignCall, CounterDelta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return CampaignCall{}, CounterDelta{}, ErrNotFound
	}
	next, d, err := Apply(r.rows[i], u)
	if err != nil {
		return CampaignCall{}, CounterDelta{}, err
	}
	if !d.IsZero() {
		if err := r.ledger.ApplyCounters(ctx, next.CampaignID, d); err != nil {
			return CampaignCall{}, CounterDelta{}, err
		}
	}
	r.rows[i] = next
	return next, d, nil
}
