package contacts

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory contact source store useful for tests.
type MemoryStore struct {
	mu sync.Mutex

	lists  map[string][]Contact
	files  map[string][]Contact
	owners map[SourceRef]string

	// Err, when set, is returned by every read.
	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists:  map[string][]Contact{},
		files:  map[string][]Contact{},
		owners: map[SourceRef]string{},
	}
}

// Put stores rows for ref owned by userID, replacing any previous rows.
func (s *MemoryStore) Put(ref SourceRef, userID string, rows ...Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Contact, len(rows))
	copy(cp, rows)
	for i := range cp {
		cp[i].Source = ref.Kind
	}
	switch ref.Kind {
	case SourceContactList:
		s.lists[ref.ID] = cp
	case SourceCSVFile:
		s.files[ref.ID] = cp
	}
	s.owners[ref] = userID
}

func (s *MemoryStore) ListByContactList(ctx context.Context, listID string) ([]Contact, error) {
	return s.read(s.lists, listID)
}

func (s *MemoryStore) ListByCSVFile(ctx context.Context, fileID string) ([]Contact, error) {
	return s.read(s.files, fileID)
}

func (s *MemoryStore) read(m map[string][]Contact, id string) ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	rows, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Contact, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *MemoryStore) SourceOwnedBy(ctx context.Context, ref SourceRef, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[ref]
	return ok && owner == userID, nil
}

func (s *MemoryStore) MarkDoNotCall(ctx context.Context, ref SourceRef, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := PhoneKey(phone)
	rows := s.lists[ref.ID]
	if ref.Kind == SourceCSVFile {
		rows = s.files[ref.ID]
	}
	for i := range rows {
		if PhoneKey(rows[i].Phone) == key {
			rows[i].DoNotCall = true
		}
	}
	return nil
}
