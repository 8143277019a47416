package calls

import (
	"errors"
	"time"
)

// CampaignCall is one outbound attempt at one contact on behalf of a campaign.
//
// Invariants:
// - A row is created as pending before any external call is attempted.
// - Status only moves forward (see CanTransition).
// - Outcome is written once, and only when the status is terminal.
type CampaignCall struct {
	ID         string `json:"id" db:"id"`
	CampaignID string `json:"campaign_id" db:"campaign_id"`

	// ContactID is empty when the target came from a CSV upload row.
	ContactID    string `json:"contact_id,omitempty" db:"contact_id"`
	ContactName  string `json:"contact_name" db:"contact_name"`
	ContactPhone string `json:"contact_phone" db:"contact_phone"`
	ContactEmail string `json:"contact_email,omitempty" db:"contact_email"`

	SIPCallID string `json:"sip_call_id,omitempty" db:"sip_call_id"`
	RoomName  string `json:"room_name,omitempty" db:"room_name"`

	Status          CallStatus `json:"status" db:"status"`
	Outcome         Outcome    `json:"outcome,omitempty" db:"outcome"`
	DurationSeconds int        `json:"duration_seconds" db:"duration_seconds"`
	Notes           string     `json:"notes,omitempty" db:"notes"`

	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusPending   CallStatus = "pending"
	CallStatusCalling   CallStatus = "calling"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusNoAnswer  CallStatus = "no_answer"
	CallStatusBusy      CallStatus = "busy"
)

func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusPending, CallStatusCalling, CallStatusAnswered, CallStatusCompleted,
		CallStatusFailed, CallStatusNoAnswer, CallStatusBusy:
		return true
	}
	return false
}

// Terminal statuses accept no further status changes.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy:
		return true
	}
	return false
}

// InProgress reports whether an attempt is still live.
func (s CallStatus) InProgress() bool {
	return s == CallStatusPending || s == CallStatusCalling || s == CallStatusAnswered
}

func (s CallStatus) reached() bool {
	return s == CallStatusAnswered || s == CallStatusCompleted
}

type Outcome string

const (
	OutcomeInterested    Outcome = "interested"
	OutcomeNotInterested Outcome = "not_interested"
	OutcomeCallback      Outcome = "callback"
	OutcomeDoNotCall     Outcome = "do_not_call"
	OutcomeVoicemail     Outcome = "voicemail"
	OutcomeWrongNumber   Outcome = "wrong_number"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeInterested, OutcomeNotInterested, OutcomeCallback, OutcomeDoNotCall,
		OutcomeVoicemail, OutcomeWrongNumber:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("call not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid call status transition")
	ErrOutcomeAlreadySet = errors.New("call outcome already set")
)
