package calls

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"voiceagents/pkg/utils"
)

// ManualCall is an ad-hoc assistant call placed outside any campaign
// (call_history table).
type ManualCall struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	AssistantID string     `json:"assistant_id" db:"assistant_id"`
	PhoneNumber string     `json:"phone_number" db:"phone_number"`
	ContactName string     `json:"contact_name,omitempty" db:"contact_name"`
	Status      CallStatus `json:"status" db:"status"`
	SIPCallID   string     `json:"sip_call_id,omitempty" db:"sip_call_id"`
	RoomName    string     `json:"room_name,omitempty" db:"room_name"`
	Notes       string     `json:"notes,omitempty" db:"notes"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// ManualRepository persists manual calls.
type ManualRepository interface {
	// FindRecentInProgress returns the newest pending/calling call for the
	// user+assistant pair created at or after since.
	FindRecentInProgress(ctx context.Context, userID, assistantID string, since time.Time) (ManualCall, bool, error)
	CreateManual(ctx context.Context, c ManualCall) error
	UpdateManual(ctx context.Context, c ManualCall) error
}

type PostgresManualRepo struct {
	db *sql.DB
}

func NewPostgresManualRepo(db *sql.DB) *PostgresManualRepo { return &PostgresManualRepo{db: db} }

func (r *PostgresManualRepo) FindRecentInProgress(ctx context.Context, userID, assistantID string, since time.Time) (ManualCall, bool, error) {
	const q = `
SELECT id, user_id, assistant_id, phone_number, COALESCE(contact_name, ''), status,
       COALESCE(sip_call_id, ''), COALESCE(room_name, ''), COALESCE(notes, ''), created_at, updated_at
FROM call_history
WHERE user_id = $1 AND assistant_id = $2 AND status IN ('pending', 'calling') AND created_at >= $3
ORDER BY created_at DESC
LIMIT 1
`
	var c ManualCall
	err := r.db.QueryRowContext(ctx, q, userID, assistantID, since).Scan(
		&c.ID, &c.UserID, &c.AssistantID, &c.PhoneNumber, &c.ContactName, &c.Status,
		&c.SIPCallID, &c.RoomName, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ManualCall{}, false, nil
	}
	if err != nil {
		return ManualCall{}, false, err
	}
	return c, true, nil
}

func (r *PostgresManualRepo) CreateManual(ctx context.Context, c ManualCall) error {
	const q = `
INSERT INTO call_history (id, user_id, assistant_id, phone_number, contact_name, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
`
	_, err := r.db.ExecContext(ctx, q, c.ID, c.UserID, c.AssistantID, c.PhoneNumber,
		utils.NullString(c.ContactName), c.Status, c.CreatedAt)
	return err
}

func (r *PostgresManualRepo) UpdateManual(ctx context.Context, c ManualCall) error {
	const q = `
UPDATE call_history
SET status = $2, sip_call_id = $3, room_name = $4, notes = $5, updated_at = $6
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, c.ID, c.Status, utils.NullString(c.SIPCallID),
		utils.NullString(c.RoomName), utils.NullString(c.Notes), c.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type MemoryManualRepo struct {
	mu    sync.Mutex
	calls []ManualCall
}

func NewMemoryManualRepo() *MemoryManualRepo { return &MemoryManualRepo{} }

func (r *MemoryManualRepo) FindRecentInProgress(ctx context.Context, userID, assistantID string, since time.Time) (ManualCall, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		c := r.calls[i]
		if c.UserID != userID || c.AssistantID != assistantID || c.CreatedAt.Before(since) {
			continue
		}
		if c.Status == CallStatusPending || c.Status == CallStatusCalling {
			return c, true, nil
		}
	}
	return ManualCall{}, false, nil
}

func (r *MemoryManualRepo) CreateManual(ctx context.Context, c ManualCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return nil
}

func (r *MemoryManualRepo) UpdateManual(ctx context.Context, c ManualCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.calls {
		if r.calls[i].ID == c.ID {
			r.calls[i] = c
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryManualRepo) All() []ManualCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ManualCall, len(r.calls))
	copy(out, r.calls)
	return out
}
