package contacts

import (
	"context"
	"fmt"
	"strings"
)

// Store is the persistence contract for contact sources.
// Implementations must return rows in insertion order.
type Store interface {
	ListByContactList(ctx context.Context, listID string) ([]Contact, error)
	ListByCSVFile(ctx context.Context, fileID string) ([]Contact, error)

	// SourceOwnedBy reports whether the list or CSV file belongs to userID.
	SourceOwnedBy(ctx context.Context, ref SourceRef, userID string) (bool, error)

	// MarkDoNotCall flags every row of the source with the given phone.
	MarkDoNotCall(ctx context.Context, ref SourceRef, phone string) error
}

// Source yields the raw candidate contacts of one backing store.
type Source interface {
	Contacts(ctx context.Context) ([]Contact, error)
}

type listSource struct {
	store Store
	id    string
}

func (s listSource) Contacts(ctx context.Context) ([]Contact, error) {
	return s.store.ListByContactList(ctx, s.id)
}

type csvSource struct {
	store Store
	id    string
}

func (s csvSource) Contacts(ctx context.Context) ([]Contact, error) {
	return s.store.ListByCSVFile(ctx, s.id)
}

// Resolver hides whether a campaign dials a contact list or a CSV upload.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver { return &Resolver{store: store} }

// Source returns the backing source for ref.
func (r *Resolver) Source(ref SourceRef) (Source, error) {
	if strings.TrimSpace(ref.ID) == "" {
		return nil, ErrSourceMissing
	}
	switch ref.Kind {
	case SourceContactList:
		return listSource{store: r.store, id: ref.ID}, nil
	case SourceCSVFile:
		return csvSource{store: r.store, id: ref.ID}, nil
	default:
		return nil, ErrUnknownSource
	}
}

// Resolve returns the callable contacts of ref in insertion order.
// Rows flagged do-not-call, rows without a structurally valid phone and
// repeated phones are dropped. Returned phones are normalized.
func (r *Resolver) Resolve(ctx context.Context, ref SourceRef) ([]Contact, error) {
	src, err := r.Source(ref)
	if err != nil {
		return nil, err
	}
	rows, err := src.Contacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", ref.Kind, ref.ID, err)
	}

	out := make([]Contact, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, c := range rows {
		if c.DoNotCall {
			continue
		}
		phone, ok := NormalizePhone(c.Phone)
		if !ok {
			continue
		}
		key := phoneKey(phone)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		c.Phone = phone
		c.Source = ref.Kind
		out = append(out, c)
	}
	return out, nil
}

// OwnedBy checks that userID may reference ref from a campaign.
func (r *Resolver) OwnedBy(ctx context.Context, ref SourceRef, userID string) (bool, error) {
	if _, err := r.Source(ref); err != nil {
		return false, err
	}
	return r.store.SourceOwnedBy(ctx, ref, userID)
}

// MarkDoNotCall flags phone in ref so later resolutions skip it.
func (r *Resolver) MarkDoNotCall(ctx context.Context, ref SourceRef, phone string) error {
	if _, err := r.Source(ref); err != nil {
		return err
	}
	return r.store.MarkDoNotCall(ctx, ref, phone)
}
