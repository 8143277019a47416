package reporting

import (
	"time"

	"voiceagents/internal/calls"
)

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports an unbounded range.
func (r TimeRange) IsZero() bool { return r.From.IsZero() && r.To.IsZero() }

func (r TimeRange) contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// BreakdownRequest asks for the call metrics of one campaign.
// Ownership of the campaign is checked by the caller.
type BreakdownRequest struct {
	CampaignID string    `json:"campaign_id"`
	Range      TimeRange `json:"range"`
}

// CallBreakdown summarizes a campaign's calls as recorded in campaign_calls.
type CallBreakdown struct {
	CampaignID string `json:"campaign_id"`

	TotalCalls      int                      `json:"total_calls"`
	InProgressCalls int                      `json:"in_progress_calls"`
	ByStatus        map[calls.CallStatus]int `json:"by_status"`
	ByOutcome       map[calls.Outcome]int    `json:"by_outcome"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	// AnswerRate is answered-or-completed calls over all calls.
	AnswerRate float64 `json:"answer_rate"`
	// ConversionRate is interested outcomes over all calls.
	ConversionRate float64 `json:"conversion_rate"`

	Daily []DayCount `json:"daily"`
}

// DayCount is the activity of one calendar day.
type DayCount struct {
	Day      string `json:"day"` // YYYY-MM-DD
	Calls    int    `json:"calls"`
	Answered int    `json:"answered"`
}
