package reporting

import (
	"context"
	"errors"
	"time"

	"voiceagents/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting. The calls repositories
// satisfy it.
type Repository interface {
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]calls.CampaignCall, error)
}

type Service struct {
	repo Repository
	loc  *time.Location
}

// NewService buckets daily counts in loc (UTC when nil).
func NewService(repo Repository, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, loc: loc}
}

func (s *Service) CampaignBreakdown(ctx context.Context, req BreakdownRequest) (CallBreakdown, error) {
	if req.CampaignID == "" {
		return CallBreakdown{}, ErrInvalidRequest
	}
	if !req.Range.From.IsZero() && !req.Range.To.IsZero() && !req.Range.To.After(req.Range.From) {
		return CallBreakdown{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallBreakdown{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListByCampaign(ctx, req.CampaignID, 0, 0)
	if err != nil {
		return CallBreakdown{}, err
	}

	out := CallBreakdown{
		CampaignID: req.CampaignID,
		ByStatus:   map[calls.CallStatus]int{},
		ByOutcome:  map[calls.Outcome]int{},
		Daily:      []DayCount{},
	}
	var answered, interested int
	days := map[string]int{}
	for _, c := range rows {
		if !req.Range.contains(c.CreatedAt) {
			continue
		}
		out.TotalCalls++
		out.ByStatus[c.Status]++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.Status.InProgress() {
			out.InProgressCalls++
		}
		if c.Outcome != "" {
			out.ByOutcome[c.Outcome]++
		}
		if c.Outcome == calls.OutcomeInterested {
			interested++
		}
		wasAnswered := c.Status == calls.CallStatusAnswered || c.Status == calls.CallStatusCompleted
		if wasAnswered {
			answered++
		}

		day := c.CreatedAt.In(s.loc).Format(time.DateOnly)
		i, ok := days[day]
		if !ok {
			i = len(out.Daily)
			days[day] = i
			out.Daily = append(out.Daily, DayCount{Day: day})
		}
		out.Daily[i].Calls++
		if wasAnswered {
			out.Daily[i].Answered++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
		out.AnswerRate = float64(answered) / float64(out.TotalCalls)
		out.ConversionRate = float64(interested) / float64(out.TotalCalls)
	}
	return out, nil
}
