package campaigns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"voiceagents/pkg/utils"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const campaignColumns = `
id, user_id, name, COALESCE(description, ''), assistant_id,
contact_source, COALESCE(contact_list_id::text, ''), COALESCE(csv_file_id::text, ''),
daily_cap, calling_days, start_hour, end_hour, COALESCE(campaign_prompt, ''),
execution_status, COALESCE(pause_reason, ''), COALESCE(error_message, ''),
current_daily_calls, total_calls_made, total_calls_answered,
interested, not_interested, callback, do_not_call,
last_execution_at, next_call_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (Campaign, error) {
	var (
		c              Campaign
		lastExec, next sql.NullTime
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Description, &c.AssistantID,
		&c.ContactSource, &c.ContactListID, &c.CSVFileID,
		&c.DailyCap, &c.CallingDays, &c.StartHour, &c.EndHour, &c.Script,
		&c.Status, &c.PauseReason, &c.ErrorMessage,
		&c.CurrentDailyCalls, &c.TotalCallsMade, &c.TotalCallsAnswered,
		&c.Interested, &c.NotInterested, &c.Callback, &c.DoNotCall,
		&lastExec, &next, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		return Campaign{}, err
	}
	c.LastExecutionAt = utils.TimePtr(lastExec)
	c.NextCallAt = utils.TimePtr(next)
	return c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, c Campaign) error {
	const q = `
INSERT INTO campaigns (
  id, user_id, name, description, assistant_id,
  contact_source, contact_list_id, csv_file_id,
  daily_cap, calling_days, start_hour, end_hour, campaign_prompt,
  execution_status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID, c.UserID, c.Name, utils.NullString(c.Description), c.AssistantID,
		c.ContactSource, utils.NullString(c.ContactListID), utils.NullString(c.CSVFileID),
		c.DailyCap, c.CallingDays, c.StartHour, c.EndHour, c.Script,
		c.Status, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`
	return scanCampaign(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetForUser(ctx context.Context, userID, id string) (Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND user_id = $2`
	return scanCampaign(r.db.QueryRowContext(ctx, q, id, userID))
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string) ([]Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, userID)
}

func (r *PostgresRepo) ListSchedulable(ctx context.Context) ([]Campaign, error) {
	q := `SELECT ` + campaignColumns + `
FROM campaigns
WHERE execution_status = 'running'
   OR (execution_status = 'paused' AND pause_reason IN ('outside_window', 'daily_cap'))
ORDER BY created_at, id`
	return r.list(ctx, q)
}

func (r *PostgresRepo) list(ctx context.Context, q string, args ...any) ([]Campaign, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, from []State, u StatusUpdate) (Campaign, error) {
	lock := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE`
	const write = `
UPDATE campaigns
SET execution_status = $2, pause_reason = $3, error_message = $4, next_call_at = $5, updated_at = $6
WHERE id = $1
`
	var out Campaign
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanCampaign(tx.QueryRowContext(ctx, lock, id))
		if err != nil {
			return err
		}
		if !matchesAny(cur, from) {
			return fmt.Errorf("%w: campaign is %s", ErrInvalidTransition, cur.Status)
		}
		next := applyStatus(cur, u)
		if _, err := tx.ExecContext(ctx, write, id, next.Status,
			utils.NullString(string(next.PauseReason)), utils.NullString(next.ErrorMessage),
			utils.NullTime(next.NextCallAt), next.UpdatedAt,
		); err != nil {
			return fmt.Errorf("update campaign status: %w", err)
		}
		out = next
		return nil
	})
	return out, err
}

func (r *PostgresRepo) ResetDailyCalls(ctx context.Context, id string, at time.Time) error {
	const q = `UPDATE campaigns SET current_daily_calls = 0, updated_at = $2 WHERE id = $1`
	return r.exec(ctx, q, id, at)
}

func (r *PostgresRepo) Touch(ctx context.Context, id string, lastExecutionAt time.Time, nextCallAt *time.Time) error {
	const q = `UPDATE campaigns SET last_execution_at = $2, next_call_at = $3, updated_at = $2 WHERE id = $1`
	return r.exec(ctx, q, id, lastExecutionAt, utils.NullTime(nextCallAt))
}

func (r *PostgresRepo) exec(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
