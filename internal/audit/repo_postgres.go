package audit

import (
	"context"
	"database/sql"

	"voiceagents/pkg/utils"
)

// PostgresRepo appends events to audit_events. It only ever INSERTs.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, user_id, type, actor, ip_address, campaign_id, call_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.UserID, e.Type, utils.NullString(e.Actor), utils.NullString(e.IPAddress),
		utils.NullString(e.CampaignID), utils.NullString(e.CallID), utils.NullString(e.Message),
		utils.NullString(e.Metadata), e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByCampaign(ctx context.Context, userID, campaignID string, limit int) ([]Event, error) {
	const q = `
SELECT id, user_id, type, COALESCE(actor, ''), COALESCE(ip_address, ''), COALESCE(campaign_id::text, ''),
       COALESCE(call_id::text, ''), COALESCE(message, ''), COALESCE(metadata::text, ''), created_at
FROM audit_events
WHERE user_id = $1 AND campaign_id = $2
ORDER BY created_at DESC, id DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, userID, campaignID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Actor, &e.IPAddress, &e.CampaignID,
			&e.CallID, &e.Message, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
