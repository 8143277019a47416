package telephony

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Trunk is the outbound routing of one assistant, read from phone_number.
// OutboundTrunkID is empty when the assistant has a number but no trunk.
type Trunk struct {
	AssistantID     string `json:"assistant_id"`
	PhoneNumber     string `json:"phone_number"`
	OutboundTrunkID string `json:"outbound_trunk_id"`
}

// TrunkResolver looks up an assistant's outbound trunk. A missing trunk is
// reported as an empty OutboundTrunkID; an error means the lookup itself failed.
type TrunkResolver interface {
	ResolveTrunk(ctx context.Context, assistantID string) (Trunk, error)
}

type PostgresTrunks struct {
	db *sql.DB
}

func NewPostgresTrunks(db *sql.DB) *PostgresTrunks { return &PostgresTrunks{db: db} }

func (r *PostgresTrunks) ResolveTrunk(ctx context.Context, assistantID string) (Trunk, error) {
	const q = `
SELECT number, COALESCE(outbound_trunk_id, '')
FROM phone_number
WHERE inbound_assistant_id = $1
ORDER BY (outbound_trunk_id IS NULL OR outbound_trunk_id = ''), created_at
LIMIT 1
`
	t := Trunk{AssistantID: assistantID}
	err := r.db.QueryRowContext(ctx, q, assistantID).Scan(&t.PhoneNumber, &t.OutboundTrunkID)
	if errors.Is(err, sql.ErrNoRows) {
		return t, nil
	}
	if err != nil {
		return Trunk{}, err
	}
	return t, nil
}

// MemoryTrunks is an in-memory TrunkResolver useful for tests.
type MemoryTrunks struct {
	mu     sync.Mutex
	trunks map[string]Trunk

	// Err, when set, is returned by every lookup.
	Err error
}

func NewMemoryTrunks() *MemoryTrunks {
	return &MemoryTrunks{trunks: map[string]Trunk{}}
}

func (m *MemoryTrunks) Put(t Trunk) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trunks[t.AssistantID] = t
}

func (m *MemoryTrunks) ResolveTrunk(ctx context.Context, assistantID string) (Trunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Trunk{}, m.Err
	}
	t, ok := m.trunks[assistantID]
	if !ok {
		return Trunk{AssistantID: assistantID}, nil
	}
	return t, nil
}
