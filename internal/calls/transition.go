package calls

import (
	"fmt"
	"time"
)

var transitions = map[CallStatus][]CallStatus{
	CallStatusPending:  {CallStatusCalling, CallStatusAnswered, CallStatusFailed},
	CallStatusCalling:  {CallStatusAnswered, CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy},
	CallStatusAnswered: {CallStatusCompleted, CallStatusFailed},
}

// CanTransition reports whether a call may move from one status to another.
func CanTransition(from, to CallStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Update is a partial change to a call row. Zero fields are left untouched.
type Update struct {
	Status          CallStatus
	Outcome         Outcome
	SIPCallID       string
	RoomName        string
	Notes           string
	DurationSeconds *int
	At              time.Time
}

// CounterDelta is what a call change adds to its campaign's counters.
type CounterDelta struct {
	Answered      int
	Interested    int
	NotInterested int
	Callback      int
	DoNotCall     int
}

func (d CounterDelta) IsZero() bool { return d == CounterDelta{} }

// Apply computes the next state of c under u together with the counter
// increments the change implies. It never mutates c.
//
// Rules:
// - A repeated status is a no-op.
// - Setting an outcome on a call still calling/answered completes it.
// - An outcome cannot be set on a pending call, nor changed once set.
// - The first arrival at answered or completed counts one answered call.
func Apply(c CampaignCall, u Update) (CampaignCall, CounterDelta, error) {
	var d CounterDelta
	next := c
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}

	target := u.Status
	if target != "" && !target.Valid() {
		return c, d, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, target)
	}
	if u.Outcome != "" {
		if !u.Outcome.Valid() {
			return c, d, fmt.Errorf("%w: unknown outcome %q", ErrInvalidArgument, u.Outcome)
		}
		if c.Outcome != "" && c.Outcome != u.Outcome {
			return c, d, ErrOutcomeAlreadySet
		}
		if target == "" && !c.Status.Terminal() {
			if c.Status == CallStatusPending {
				return c, d, fmt.Errorf("%w: outcome on pending call", ErrInvalidTransition)
			}
			target = CallStatusCompleted
		}
	}

	if target != "" && target != c.Status {
		if !CanTransition(c.Status, target) {
			return c, d, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, target)
		}
		next.Status = target
		if next.StartedAt == nil && target != CallStatusFailed {
			next.StartedAt = &at
		}
		if target.Terminal() {
			next.CompletedAt = &at
		}
		if target.reached() && !c.Status.reached() {
			d.Answered = 1
		}
	}

	if u.Outcome != "" && c.Outcome == "" {
		if !next.Status.Terminal() {
			return c, CounterDelta{}, fmt.Errorf("%w: outcome requires a terminal status, got %s", ErrInvalidTransition, next.Status)
		}
		next.Outcome = u.Outcome
		switch u.Outcome {
		case OutcomeInterested:
			d.Interested = 1
		case OutcomeNotInterested:
			d.NotInterested = 1
		case OutcomeCallback:
			d.Callback = 1
		case OutcomeDoNotCall:
			d.DoNotCall = 1
		}
	}

	if u.SIPCallID != "" {
		next.SIPCallID = u.SIPCallID
	}
	if u.RoomName != "" {
		next.RoomName = u.RoomName
	}
	if u.Notes != "" {
		next.Notes = u.Notes
	}
	if u.DurationSeconds != nil {
		if *u.DurationSeconds < 0 {
			return c, CounterDelta{}, fmt.Errorf("%w: negative duration", ErrInvalidArgument)
		}
		next.DurationSeconds = *u.DurationSeconds
	}
	next.UpdatedAt = at
	return next, d, nil
}
