package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"voiceagents/pkg/utils"
)

// PostgresRepo stores calls in campaign_calls and keeps the counters on
// campaigns in the same transaction.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `
cc.id, cc.campaign_id, COALESCE(cc.contact_id::text, ''), cc.contact_name, cc.contact_phone,
COALESCE(cc.contact_email, ''), COALESCE(cc.sip_call_id, ''), COALESCE(cc.room_name, ''),
cc.status, COALESCE(cc.outcome, ''), cc.duration_seconds, COALESCE(cc.notes, ''),
cc.started_at, cc.completed_at, cc.created_at, cc.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CampaignCall, error) {
	var (
		c                  CampaignCall
		started, completed sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.CampaignID, &c.ContactID, &c.ContactName, &c.ContactPhone,
		&c.ContactEmail, &c.SIPCallID, &c.RoomName,
		&c.Status, &c.Outcome, &c.DurationSeconds, &c.Notes,
		&started, &completed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CampaignCall{}, ErrNotFound
		}
		return CampaignCall{}, err
	}
	c.StartedAt = utils.TimePtr(started)
	c.CompletedAt = utils.TimePtr(completed)
	return c, nil
}

func (r *PostgresRepo) BeginAttempt(ctx context.Context, c CampaignCall) (int, error) {
	const insert = `
INSERT INTO campaign_calls (
  id, campaign_id, contact_id, contact_name, contact_phone, contact_email,
  status, duration_seconds, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,0,$8,$8)
`
	const count = `
UPDATE campaigns
SET total_calls_made = total_calls_made + 1,
    current_daily_calls = current_daily_calls + 1,
    updated_at = $2
WHERE id = $1
RETURNING current_daily_calls
`
	var daily int
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert,
			c.ID, c.CampaignID, utils.NullString(c.ContactID), c.ContactName, c.ContactPhone,
			utils.NullString(c.ContactEmail), c.Status, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert campaign call: %w", err)
		}
		if err := tx.QueryRowContext(ctx, count, c.CampaignID, c.CreatedAt).Scan(&daily); err != nil {
			return fmt.Errorf("count attempt: %w", err)
		}
		return nil
	})
	return daily, err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (CampaignCall, error) {
	q := `SELECT ` + callColumns + ` FROM campaign_calls cc WHERE cc.id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetOwned(ctx context.Context, userID, id string) (CampaignCall, error) {
	q := `SELECT ` + callColumns + `
FROM campaign_calls cc
JOIN campaigns c ON c.id = cc.campaign_id
WHERE cc.id = $1 AND c.user_id = $2`
	return scanCall(r.db.QueryRowContext(ctx, q, id, userID))
}

func (r *PostgresRepo) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]CampaignCall, error) {
	q := `SELECT ` + callColumns + `
FROM campaign_calls cc
WHERE cc.campaign_id = $1
ORDER BY cc.created_at, cc.id`
	args := []any{campaignID}
	if limit > 0 {
		q += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	return r.list(ctx, q, args...)
}

func (r *PostgresRepo) ListAttempted(ctx context.Context, campaignID string) ([]CampaignCall, error) {
	q := `SELECT ` + callColumns + `
FROM campaign_calls cc
WHERE cc.campaign_id = $1 AND cc.status <> 'pending'
ORDER BY cc.created_at, cc.id`
	return r.list(ctx, q, campaignID)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]CampaignCall, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CampaignCall
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Update(ctx context.Context, id string, u Update) (CampaignCall, CounterDelta, error) {
	lock := `SELECT ` + callColumns + ` FROM campaign_calls cc WHERE cc.id = $1 FOR UPDATE`
	const write = `
UPDATE campaign_calls
SET status = $2, outcome = $3, sip_call_id = $4, room_name = $5, notes = $6,
    duration_seconds = $7, started_at = $8, completed_at = $9, updated_at = $10
WHERE id = $1
`
	const counters = `
UPDATE campaigns
SET total_calls_answered = total_calls_answered + $2,
    interested = interested + $3,
    not_interested = not_interested + $4,
    callback = callback + $5,
    do_not_call = do_not_call + $6,
    updated_at = NOW()
WHERE id = $1
`
	var (
		out   CampaignCall
		delta CounterDelta
	)
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanCall(tx.QueryRowContext(ctx, lock, id))
		if err != nil {
			return err
		}
		next, d, err := Apply(cur, u)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, write,
			next.ID, next.Status, utils.NullString(string(next.Outcome)), utils.NullString(next.SIPCallID),
			utils.NullString(next.RoomName), utils.NullString(next.Notes), next.DurationSeconds,
			utils.NullTime(next.StartedAt), utils.NullTime(next.CompletedAt), next.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update campaign call: %w", err)
		}
		if !d.IsZero() {
			if _, err := tx.ExecContext(ctx, counters, next.CampaignID,
				d.Answered, d.Interested, d.NotInterested, d.Callback, d.DoNotCall,
			); err != nil {
				return fmt.Errorf("apply campaign counters: %w", err)
			}
		}
		out, delta = next, d
		return nil
	})
	return out, delta, err
}
