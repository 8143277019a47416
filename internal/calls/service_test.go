package calls

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voiceagents/internal/audit"
	"voiceagents/internal/events"
)

type fakeLedger struct {
	mu       sync.Mutex
	owner    map[string]string
	daily    map[string]int
	counters map[string]CounterDelta
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{owner: map[string]string{}, daily: map[string]int{}, counters: map[string]CounterDelta{}}
}

func (l *fakeLedger) RecordAttempt(ctx context.Context, campaignID string, at time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.daily[campaignID]++
	return l.daily[campaignID], nil
}

func (l *fakeLedger) ApplyCounters(ctx context.Context, campaignID string, d CounterDelta) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.counters[campaignID]
	c.Answered += d.Answered
	c.Interested += d.Interested
	c.NotInterested += d.NotInterested
	c.Callback += d.Callback
	c.DoNotCall += d.DoNotCall
	l.counters[campaignID] = c
	return nil
}

func (l *fakeLedger) OwnerOf(ctx context.Context, campaignID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.owner[campaignID]
	if !ok {
		return "", ErrNotFound
	}
	return o, nil
}

type fakeDNC struct {
	phones []string
}

func (f *fakeDNC) MarkDoNotCall(ctx context.Context, campaignID, phone string) error {
	f.phones = append(f.phones, phone)
	return nil
}

func setup(t *testing.T) (*Service, *MemoryRepo, *fakeLedger, *fakeDNC, *events.Recorder, *audit.MemoryRepo) {
	t.Helper()
	ledger := newFakeLedger()
	ledger.owner["c1"] = "u1"
	repo := NewMemoryRepo(ledger)
	dnc := &fakeDNC{}
	rec := &events.Recorder{}
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, dnc, audit.NewService(auditRepo), rec, nil)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"k1", "k2"} {
		if _, err := repo.BeginAttempt(context.Background(), CampaignCall{
			ID: id, CampaignID: "c1", ContactName: "Ana", ContactPhone: "+15550001", Status: CallStatusPending, CreatedAt: now,
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if _, _, err := repo.Update(context.Background(), "k1", Update{Status: CallStatusCalling, At: now}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc, repo, ledger, dnc, rec, auditRepo
}

func TestService_RecordOutcome(t *testing.T) {
	svc, _, ledger, dnc, rec, auditRepo := setup(t)

	c, err := svc.RecordOutcome(context.Background(), "u1", "1.2.3.4", "k1", OutcomeChange{Outcome: OutcomeDoNotCall, Notes: "asked to be removed"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.Status != CallStatusCompleted || c.Outcome != OutcomeDoNotCall {
		t.Fatalf("unexpected call: %+v", c)
	}
	if got := ledger.counters["c1"]; got.Answered != 1 || got.DoNotCall != 1 {
		t.Fatalf("unexpected counters: %+v", got)
	}
	if len(dnc.phones) != 1 || dnc.phones[0] != "+15550001" {
		t.Fatalf("expected contact flagged, got %v", dnc.phones)
	}
	if len(rec.OfType(events.CallOutcomeRecorded)) != 1 {
		t.Fatalf("expected outcome event")
	}
	if len(auditRepo.Events()) != 1 {
		t.Fatalf("expected audit event")
	}

	if _, err := svc.RecordOutcome(context.Background(), "u1", "", "k1", OutcomeChange{Outcome: OutcomeInterested}); !errors.Is(err, ErrOutcomeAlreadySet) {
		t.Fatalf("expected ErrOutcomeAlreadySet, got %v", err)
	}
}

func TestService_RepeatedOutcomeHasNoSideEffects(t *testing.T) {
	svc, _, ledger, dnc, rec, auditRepo := setup(t)
	ctx := context.Background()
	in := OutcomeChange{Outcome: OutcomeDoNotCall}

	if _, err := svc.RecordOutcome(ctx, "u1", "", "k1", in); err != nil {
		t.Fatalf("first outcome: %v", err)
	}
	again, err := svc.RecordOutcome(ctx, "u1", "", "k1", in)
	if err != nil || again.Outcome != OutcomeDoNotCall {
		t.Fatalf("repeat must be accepted, got %+v %v", again, err)
	}
	if got := ledger.counters["c1"]; got.DoNotCall != 1 {
		t.Fatalf("counter incremented twice: %+v", got)
	}
	if len(dnc.phones) != 1 {
		t.Fatalf("contact flagged %d times", len(dnc.phones))
	}
	if n := len(rec.OfType(events.CallOutcomeRecorded)); n != 1 {
		t.Fatalf("expected one outcome event, got %d", n)
	}
	if n := len(auditRepo.Events()); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
}

func TestService_RecordOutcomeOnPendingCall(t *testing.T) {
	svc, _, _, _, _, _ := setup(t)
	if _, err := svc.RecordOutcome(context.Background(), "u1", "", "k2", OutcomeChange{Outcome: OutcomeInterested}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestService_OwnershipIsEnforced(t *testing.T) {
	svc, _, _, _, _, _ := setup(t)
	if _, err := svc.RecordOutcome(context.Background(), "u2", "", "k1", OutcomeChange{Outcome: OutcomeInterested}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "u2", "k1", StatusChange{Status: CallStatusAnswered}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestService_UpdateStatus(t *testing.T) {
	svc, _, ledger, _, _, _ := setup(t)
	dur := 42

	c, err := svc.UpdateStatus(context.Background(), "u1", "k1", StatusChange{Status: CallStatusAnswered})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	c, err = svc.UpdateStatus(context.Background(), "u1", "k1", StatusChange{Status: CallStatusCompleted, DurationSeconds: &dur})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.DurationSeconds != 42 || c.CompletedAt == nil {
		t.Fatalf("unexpected call: %+v", c)
	}
	if ledger.counters["c1"].Answered != 1 {
		t.Fatalf("expected one answered call, got %+v", ledger.counters["c1"])
	}

	if _, err := svc.UpdateStatus(context.Background(), "u1", "k1", StatusChange{Status: CallStatusCalling}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "u1", "k1", StatusChange{Status: "bogus"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestService_ListForCampaign(t *testing.T) {
	svc, _, _, _, _, _ := setup(t)

	all, err := svc.ListForCampaign(context.Background(), "c1", 0, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 calls, got %d (%v)", len(all), err)
	}
	page, err := svc.ListForCampaign(context.Background(), "c1", 1, 1)
	if err != nil || len(page) != 1 || page[0].ID != "k2" {
		t.Fatalf("unexpected page: %+v (%v)", page, err)
	}
	if _, err := svc.ListForCampaign(context.Background(), "c1", -1, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument")
	}
}

func TestMemoryManualRepo_FindRecentInProgress(t *testing.T) {
	repo := NewMemoryManualRepo()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	_ = repo.CreateManual(context.Background(), ManualCall{ID: "old", UserID: "u", AssistantID: "a", Status: CallStatusCalling, CreatedAt: now.Add(-5 * time.Minute)})
	_ = repo.CreateManual(context.Background(), ManualCall{ID: "done", UserID: "u", AssistantID: "a", Status: CallStatusFailed, CreatedAt: now})

	if _, ok, _ := repo.FindRecentInProgress(context.Background(), "u", "a", now.Add(-2*time.Minute)); ok {
		t.Fatalf("expected no reusable call")
	}

	_ = repo.CreateManual(context.Background(), ManualCall{ID: "live", UserID: "u", AssistantID: "a", Status: CallStatusPending, CreatedAt: now})
	got, ok, err := repo.FindRecentInProgress(context.Background(), "u", "a", now.Add(-2*time.Minute))
	if err != nil || !ok || got.ID != "live" {
		t.Fatalf("expected live call, got %+v %v %v", got, ok, err)
	}
}
