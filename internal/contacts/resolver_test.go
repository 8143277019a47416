package contacts

import (
	"context"
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+1 (555) 123-4567", "+15551234567", true},
		{" 555.123.4567 ", "5551234567", true},
		{"", "", false},
		{"   ", "", false},
		{"12345", "", false},
		{"555-CALL-NOW", "", false},
		{"1+5551234567", "", false},
		{"+1234567890123456", "", false},
		{"+44 20 7946 0958", "+442079460958", true},
		{"+999 555 0101 22", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizePhone(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestResolve_FiltersAndKeepsOrder(t *testing.T) {
	store := NewMemoryStore()
	ref := SourceRef{Kind: SourceContactList, ID: "list-1"}
	store.Put(ref, "u1",
		Contact{ID: "c1", Name: "Ana", Phone: "+1 555 000 0001"},
		Contact{ID: "c2", Name: "Bo", Phone: "+15550000002", DoNotCall: true},
		Contact{ID: "c3", Name: "Cy", Phone: ""},
		Contact{ID: "c4", Name: "Di", Phone: "+15550000004"},
		Contact{ID: "c5", Name: "Ana again", Phone: "+1-555-000-0001"},
	)

	got, err := NewResolver(store).Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 contacts, got %d: %+v", len(got), got)
	}
	if got[0].ID != "c1" || got[1].ID != "c4" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Phone != "+15550000001" {
		t.Fatalf("expected normalized phone, got %q", got[0].Phone)
	}
	if got[0].ListContactID() != "c1" {
		t.Fatalf("expected list contact id")
	}
}

func TestResolve_CSVSource(t *testing.T) {
	store := NewMemoryStore()
	ref := SourceRef{Kind: SourceCSVFile, ID: "file-1"}
	store.Put(ref, "u1", Contact{ID: "row-1", Name: "Eve", Phone: "5551234567", Email: "eve@example.com"})

	got, err := NewResolver(store).Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0].Source != SourceCSVFile {
		t.Fatalf("unexpected contacts: %+v", got)
	}
	if got[0].ListContactID() != "" {
		t.Fatalf("csv rows must not carry a contact id")
	}
}

func TestResolve_Errors(t *testing.T) {
	store := NewMemoryStore()
	r := NewResolver(store)
	ctx := context.Background()

	if _, err := r.Resolve(ctx, SourceRef{Kind: "sheet", ID: "x"}); !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
	if _, err := r.Resolve(ctx, SourceRef{Kind: SourceCSVFile}); !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
	if _, err := r.Resolve(ctx, SourceRef{Kind: SourceCSVFile, ID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkDoNotCall(t *testing.T) {
	store := NewMemoryStore()
	ref := SourceRef{Kind: SourceContactList, ID: "l"}
	store.Put(ref, "u1", Contact{ID: "c1", Phone: "+1 555 000 0001"}, Contact{ID: "c2", Phone: "+15550000002"})
	r := NewResolver(store)

	if err := r.MarkDoNotCall(context.Background(), ref, "+15550000001"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	got, _ := r.Resolve(context.Background(), ref)
	if len(got) != 1 || got[0].ID != "c2" {
		t.Fatalf("expected only c2 left, got %+v", got)
	}
}

func TestOwnedBy(t *testing.T) {
	store := NewMemoryStore()
	ref := SourceRef{Kind: SourceCSVFile, ID: "f"}
	store.Put(ref, "owner")
	r := NewResolver(store)

	if ok, _ := r.OwnedBy(context.Background(), ref, "owner"); !ok {
		t.Fatalf("expected owner")
	}
	if ok, _ := r.OwnedBy(context.Background(), ref, "other"); ok {
		t.Fatalf("expected not owner")
	}
}
