package calls

import (
	"context"
	"time"
)

// Repository is the persistence contract for campaign_calls.
//
// BeginAttempt and Update must change the call row and the owning campaign's
// counters atomically.
type Repository interface {
	// BeginAttempt inserts a pending row and counts the attempt against the
	// campaign. It returns the campaign's daily call count after the increment.
	BeginAttempt(ctx context.Context, c CampaignCall) (dailyCalls int, err error)

	Get(ctx context.Context, id string) (CampaignCall, error)
	// GetOwned returns the call only if its campaign belongs to userID.
	GetOwned(ctx context.Context, userID, id string) (CampaignCall, error)

	// ListByCampaign returns rows in creation order. limit <= 0 means all rows.
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]CampaignCall, error)
	// ListAttempted returns the non-pending rows of a campaign.
	ListAttempted(ctx context.Context, campaignID string) ([]CampaignCall, error)

	Update(ctx context.Context, id string, u Update) (CampaignCall, CounterDelta, error)
}

// CampaignLedger is the campaign-side half of the counter bookkeeping, used by
// the in-memory repository. The Postgres repository updates the campaigns
// table directly inside its transaction.
type CampaignLedger interface {
	RecordAttempt(ctx context.Context, campaignID string, at time.Time) (int, error)
	ApplyCounters(ctx context.Context, campaignID string, d CounterDelta) error
	OwnerOf(ctx context.Context, campaignID string) (string, error)
}
