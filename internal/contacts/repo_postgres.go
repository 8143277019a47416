package contacts

import (
	"context"
	"database/sql"
)

// PostgresStore reads contact sources from the contact_lists/contacts and
// csv_files/csv_contacts tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) ListByContactList(ctx context.Context, listID string) ([]Contact, error) {
	const q = `
SELECT id, name, phone, COALESCE(email, ''), do_not_call
FROM contacts
WHERE list_id = $1
ORDER BY created_at, id
`
	return s.list(ctx, q, listID, SourceContactList)
}

func (s *PostgresStore) ListByCSVFile(ctx context.Context, fileID string) ([]Contact, error) {
	const q = `
SELECT id, COALESCE(name, ''), COALESCE(phone, ''), COALESCE(email, ''), do_not_call
FROM csv_contacts
WHERE csv_file_id = $1
ORDER BY created_at, id
`
	return s.list(ctx, q, fileID, SourceCSVFile)
}

func (s *PostgresStore) list(ctx context.Context, q, id string, kind SourceKind) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contact
	for rows.Next() {
		c := Contact{Source: kind}
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.DoNotCall); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) > 0 {
		return out, nil
	}

	// An empty source and a missing one look the same above.
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery(kind), id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return out, nil
}

func existsQuery(kind SourceKind) string {
	if kind == SourceCSVFile {
		return `SELECT EXISTS (SELECT 1 FROM csv_files WHERE id = $1)`
	}
	return `SELECT EXISTS (SELECT 1 FROM contact_lists WHERE id = $1)`
}

func (s *PostgresStore) SourceOwnedBy(ctx context.Context, ref SourceRef, userID string) (bool, error) {
	var q string
	switch ref.Kind {
	case SourceContactList:
		q = `SELECT EXISTS (SELECT 1 FROM contact_lists WHERE id = $1 AND user_id = $2)`
	case SourceCSVFile:
		q = `SELECT EXISTS (SELECT 1 FROM csv_files WHERE id = $1 AND user_id = $2)`
	default:
		return false, ErrUnknownSource
	}
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, ref.ID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) MarkDoNotCall(ctx context.Context, ref SourceRef, phone string) error {
	key := PhoneKey(phone)
	if key == "" {
		return nil
	}
	var q string
	switch ref.Kind {
	case SourceContactList:
		q = `
UPDATE contacts SET do_not_call = TRUE, updated_at = NOW()
WHERE list_id = $1 AND regexp_replace(phone, '[^0-9]', '', 'g') = $2
`
	case SourceCSVFile:
		q = `
UPDATE csv_contacts SET do_not_call = TRUE
WHERE csv_file_id = $1 AND regexp_replace(phone, '[^0-9]', '', 'g') = $2
`
	default:
		return ErrUnknownSource
	}
	_, err := s.db.ExecContext(ctx, q, ref.ID, key)
	return err
}
