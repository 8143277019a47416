package audit

import (
	"context"
	"testing"
	"time"
)

func TestService_AppendRequiresUserAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeCampaignCreated}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{UserID: "u"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("invalid events must not be stored")
	}
}

func TestService_LogCampaignStatus(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.clock = func() time.Time { return fixed }

	if err := svc.LogCampaignStatus(context.Background(), "u1", ActorEngine, "", "c1", "running", "paused", "outside_window"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ID == "" || !e.CreatedAt.Equal(fixed) {
		t.Fatalf("expected id and timestamp to be filled: %+v", e)
	}
	if e.Type != EventTypeCampaignStatusChanged || e.CampaignID != "c1" || e.Actor != ActorEngine {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.Message != "running -> paused (outside_window)" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestService_NilIsSafe(t *testing.T) {
	var svc *Service
	if err := svc.LogOutcome(context.Background(), "u", "", "c", "call", "interested"); err == nil {
		t.Fatalf("expected error from nil service")
	}
}

func TestService_CampaignTrailIsScopedAndNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tick := 0
	svc.clock = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	_ = svc.LogCampaignCreated(ctx, "u1", "", "c1", "Spring")
	_ = svc.LogCampaignStatus(ctx, "u1", ActorUser, "1.2.3.4", "c1", "idle", "running", "")
	_ = svc.LogCampaignStatus(ctx, "u1", ActorEngine, "", "c1", "running", "paused", "daily_cap")
	_ = svc.LogCampaignStatus(ctx, "u1", ActorUser, "", "c2", "idle", "running", "")
	_ = svc.LogCampaignStatus(ctx, "u2", ActorUser, "", "c1", "idle", "running", "")

	trail, err := svc.CampaignTrail(ctx, "u1", "c1", 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("expected 3 events for u1/c1, got %d", len(trail))
	}
	if trail[0].Actor != ActorEngine || trail[2].Type != EventTypeCampaignCreated {
		t.Fatalf("expected newest first, got %+v", trail)
	}

	limited, _ := svc.CampaignTrail(ctx, "u1", "c1", 1)
	if len(limited) != 1 || limited[0].ID != trail[0].ID {
		t.Fatalf("limit not honored: %+v", limited)
	}
	if got := repo.ByActor(ActorEngine); len(got) != 1 {
		t.Fatalf("expected one engine event, got %d", len(got))
	}
	if _, err := svc.CampaignTrail(ctx, "u1", "", 10); err == nil {
		t.Fatalf("expected error for missing campaign id")
	}
}
