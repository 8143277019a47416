package campaigns

import (
	"context"
	"time"
)

// StatusUpdate is written by a compare-and-set status change.
// PauseReason is stored only for paused and ErrorMessage only for error.
type StatusUpdate struct {
	Status       Status
	PauseReason  PauseReason
	ErrorMessage string
	NextCallAt   *time.Time
	At           time.Time
}

type Repository interface {
	Create(ctx context.Context, c Campaign) error
	Get(ctx context.Context, id string) (Campaign, error)
	GetForUser(ctx context.Context, userID, id string) (Campaign, error)
	ListByUser(ctx context.Context, userID string) ([]Campaign, error)

	// ListSchedulable returns running campaigns and campaigns paused for a
	// scheduling reason, oldest first.
	ListSchedulable(ctx context.Context) ([]Campaign, error)

	// UpdateStatus applies u only if the campaign is currently in one of from.
	// It returns ErrInvalidTransition when no state matched.
	UpdateStatus(ctx context.Context, id string, from []State, u StatusUpdate) (Campaign, error)

	// ResetDailyCalls zeroes current_daily_calls.
	ResetDailyCalls(ctx context.Context, id string, at time.Time) error

	// Touch records that the engine processed the campaign.
	Touch(ctx context.Context, id string, lastExecutionAt time.Time, nextCallAt *time.Time) error
}

func applyStatus(c Campaign, u StatusUpdate) Campaign {
	c.Status = u.Status
	c.PauseReason = ""
	c.ErrorMessage = ""
	if u.Status == StatusPaused {
		c.PauseReason = u.PauseReason
	}
	if u.Status == StatusError {
		c.ErrorMessage = u.ErrorMessage
	}
	c.NextCallAt = u.NextCallAt
	c.UpdatedAt = u.At
	return c
}
