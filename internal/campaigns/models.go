package campaigns

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"voiceagents/internal/contacts"
)

// Campaign is one outbound calling job: who to call, with which assistant,
// and when calling is allowed.
//
// Invariants:
// - Status only changes through the lifecycle in lifecycle.go.
// - PauseReason is set if and only if Status is paused.
// - Counters are monotonic; CurrentDailyCalls resets on day rollover.
type Campaign struct {
	ID          string `json:"id" db:"id"`
	UserID      string `json:"user_id" db:"user_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`
	AssistantID string `json:"assistant_id" db:"assistant_id"`

	ContactSource contacts.SourceKind `json:"contact_source" db:"contact_source"`
	ContactListID string              `json:"contact_list_id,omitempty" db:"contact_list_id"`
	CSVFileID     string              `json:"csv_file_id,omitempty" db:"csv_file_id"`

	DailyCap    int         `json:"daily_cap" db:"daily_cap"`
	CallingDays CallingDays `json:"calling_days" db:"calling_days"`
	StartHour   int         `json:"start_hour" db:"start_hour"`
	EndHour     int         `json:"end_hour" db:"end_hour"`

	// Script is the prompt template; see Interpolate.
	Script string `json:"campaign_prompt" db:"campaign_prompt"`

	Status       Status      `json:"execution_status" db:"execution_status"`
	PauseReason  PauseReason `json:"pause_reason,omitempty" db:"pause_reason"`
	ErrorMessage string      `json:"error_message,omitempty" db:"error_message"`

	CurrentDailyCalls  int `json:"current_daily_calls" db:"current_daily_calls"`
	TotalCallsMade     int `json:"total_calls_made" db:"total_calls_made"`
	TotalCallsAnswered int `json:"total_calls_answered" db:"total_calls_answered"`
	Interested         int `json:"interested" db:"interested"`
	NotInterested      int `json:"not_interested" db:"not_interested"`
	Callback           int `json:"callback" db:"callback"`
	DoNotCall          int `json:"do_not_call" db:"do_not_call"`

	LastExecutionAt *time.Time `json:"last_execution_at,omitempty" db:"last_execution_at"`
	NextCallAt      *time.Time `json:"next_call_at,omitempty" db:"next_call_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Source is the contact source the campaign dials.
func (c Campaign) Source() contacts.SourceRef {
	ref := contacts.SourceRef{Kind: c.ContactSource}
	switch c.ContactSource {
	case contacts.SourceContactList:
		ref.ID = c.ContactListID
	case contacts.SourceCSVFile:
		ref.ID = c.CSVFileID
	}
	return ref
}

type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// PauseReason records why a campaign is paused.
type PauseReason string

const (
	PauseUser          PauseReason = "user"
	PauseOutsideWindow PauseReason = "outside_window"
	PauseDailyCap      PauseReason = "daily_cap"
)

// Scheduling reports whether the pause was taken by the engine and may be
// lifted by it.
func (r PauseReason) Scheduling() bool {
	return r == PauseOutsideWindow || r == PauseDailyCap
}

// CallingDays is the set of weekdays calling is allowed on. Stored as a JSON
// array of lowercase day names.
type CallingDays []time.Weekday

// AllDays is the default when no days are given.
func AllDays() CallingDays {
	return CallingDays{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday}
}

// Contains reports whether d allows w. An empty set allows every day.
func (d CallingDays) Contains(w time.Weekday) bool {
	if len(d) == 0 {
		return true
	}
	for _, x := range d {
		if x == w {
			return true
		}
	}
	return false
}

// ParseCallingDays accepts full or three-letter day names in any case.
func ParseCallingDays(names []string) (CallingDays, error) {
	out := make(CallingDays, 0, len(names))
	seen := map[time.Weekday]bool{}
	for _, n := range names {
		w, ok := parseWeekday(n)
		if !ok {
			return nil, fmt.Errorf("%w: unknown calling day %q", ErrInvalidArgument, n)
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out, nil
}

func parseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for w := time.Sunday; w <= time.Saturday; w++ {
		name := strings.ToLower(w.String())
		if s == name || s == name[:3] {
			return w, true
		}
	}
	return 0, false
}

func (d CallingDays) names() []string {
	out := make([]string, len(d))
	for i, w := range d {
		out[i] = strings.ToLower(w.String())
	}
	return out
}

func (d CallingDays) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.names())
}

func (d *CallingDays) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	parsed, err := ParseCallingDays(names)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d CallingDays) Value() (driver.Value, error) {
	b, err := json.Marshal(d.names())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (d *CallingDays) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		return d.UnmarshalJSON(v)
	case string:
		return d.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("campaigns: cannot scan %T into CallingDays", src)
	}
}

var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid campaign status transition")
	ErrSourceNotOwned    = errors.New("contact source not found")
)
