package campaigns

import (
	"context"
	"time"

	"voiceagents/internal/audit"
)

// Transitions and bookkeeping driven by the engine.

// ListSchedulable returns every campaign the engine should look at this tick.
func (s *Service) ListSchedulable(ctx context.Context) ([]Campaign, error) {
	return s.repo.ListSchedulable(ctx)
}

// Reload re-reads c so control commands issued mid-loop are seen.
func (s *Service) Reload(ctx context.Context, id string) (Campaign, error) {
	return s.repo.Get(ctx, id)
}

// SoftPause pauses a campaign for a scheduling reason until nextAt.
func (s *Service) SoftPause(ctx context.Context, c Campaign, reason PauseReason, nextAt *time.Time) (Campaign, error) {
	return s.transition(ctx, c, audit.ActorEngine, "", fromSoftPause, StatusUpdate{
		Status:      StatusPaused,
		PauseReason: reason,
		NextCallAt:  nextAt,
	})
}

// AutoResume lifts a scheduling pause once the gate passes again.
func (s *Service) AutoResume(ctx context.Context, c Campaign) (Campaign, error) {
	return s.transition(ctx, c, audit.ActorEngine, "", fromAutoResume, StatusUpdate{Status: StatusRunning})
}

// Complete marks a running campaign whose contacts are exhausted.
func (s *Service) Complete(ctx context.Context, c Campaign) (Campaign, error) {
	return s.transition(ctx, c, audit.ActorEngine, "", fromComplete, StatusUpdate{Status: StatusCompleted})
}

// Fail moves the campaign to error with msg kept for the operator.
func (s *Service) Fail(ctx context.Context, c Campaign, msg string) (Campaign, error) {
	return s.transition(ctx, c, audit.ActorEngine, "", fromFail, StatusUpdate{Status: StatusError, ErrorMessage: msg})
}

// RollOver resets the daily counter when the last execution was on an earlier
// calendar day in loc.
func (s *Service) RollOver(ctx context.Context, c Campaign, now time.Time, loc *time.Location) (Campaign, error) {
	if c.LastExecutionAt == nil || c.CurrentDailyCalls == 0 || SameDay(*c.LastExecutionAt, now, loc) {
		return c, nil
	}
	if now.Before(*c.LastExecutionAt) {
		return c, nil
	}
	if err := s.repo.ResetDailyCalls(ctx, c.ID, now); err != nil {
		return c, err
	}
	s.log.Info("daily call counter reset", "campaign_id", c.ID, "previous", c.CurrentDailyCalls)
	c.CurrentDailyCalls = 0
	return c, nil
}

// Touch records last_execution_at and next_call_at.
func (s *Service) Touch(ctx context.Context, id string, at time.Time, nextAt *time.Time) error {
	return s.repo.Touch(ctx, id, at, nextAt)
}
