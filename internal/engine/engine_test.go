package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"voiceagents/internal/audit"
	"voiceagents/internal/calls"
	"voiceagents/internal/campaigns"
	"voiceagents/internal/contacts"
	"voiceagents/internal/events"
	"voiceagents/internal/telephony"
)

type fakeDialer struct {
	mu       sync.Mutex
	fail     map[string]error
	answered bool
	requests []telephony.DialRequest
}

func (d *fakeDialer) Dial(ctx context.Context, req telephony.DialRequest) (telephony.DialResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if err := d.fail[req.PhoneNumber]; err != nil {
		return telephony.DialResult{}, err
	}
	return telephony.DialResult{
		ParticipantIdentity: req.ParticipantIdentity,
		RoomName:            req.RoomName,
		SIPCallID:           "SCL_" + req.ParticipantIdentity,
		Answered:            d.answered,
	}, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	err      error
	requests []telephony.DispatchRequest
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, req telephony.DispatchRequest) (telephony.DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	if d.err != nil {
		return telephony.DispatchResult{}, d.err
	}
	return telephony.DispatchResult{DispatchID: "AD_1"}, nil
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (Lease, bool, error) { return nil, false, nil }

type harness struct {
	sched      *Scheduler
	camps      *campaigns.Service
	campRepo   *campaigns.MemoryRepo
	callRepo   *calls.MemoryRepo
	store      *contacts.MemoryStore
	trunks     *telephony.MemoryTrunks
	dialer     *fakeDialer
	dispatcher *fakeDispatcher
	events     *events.Recorder
	audit      *audit.MemoryRepo
	now        time.Time
}

var listRef = contacts.SourceRef{Kind: contacts.SourceContactList, ID: "list1"}

// monday10 is Monday 2026-03-02 10:00 UTC.
var monday10 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		campRepo:   campaigns.NewMemoryRepo(),
		store:      contacts.NewMemoryStore(),
		trunks:     telephony.NewMemoryTrunks(),
		dialer:     &fakeDialer{fail: map[string]error{}},
		dispatcher: &fakeDispatcher{},
		events:     &events.Recorder{},
		audit:      audit.NewMemoryRepo(),
		now:        monday10,
	}
	h.callRepo = calls.NewMemoryRepo(h.campRepo)
	resolver := contacts.NewResolver(h.store)
	h.camps = campaigns.NewService(h.campRepo, resolver, audit.NewService(h.audit), h.events, nil)
	h.trunks.Put(telephony.Trunk{AssistantID: "a1", PhoneNumber: "+15550009999", OutboundTrunkID: "ST_1"})

	exec := NewExecutor(h.callRepo, h.dialer, h.dispatcher, h.events, "voice-agent", nil)
	exec.clock = func() time.Time { return h.now }
	h.sched = NewScheduler(h.camps, resolver, h.callRepo, h.trunks, exec, NoopLocker{}, Options{CallDelay: 2 * time.Second}, nil)
	h.sched.clock = func() time.Time { return h.now }
	h.sched.sleep = func(context.Context, time.Duration) error { return nil }
	return h
}

func (h *harness) addCampaign(mut func(*campaigns.Campaign), rows ...contacts.Contact) {
	c := campaigns.Campaign{
		ID:            "c1",
		UserID:        "u1",
		Name:          "test",
		AssistantID:   "a1",
		ContactSource: contacts.SourceContactList,
		ContactListID: "list1",
		DailyCap:      10,
		CallingDays:   campaigns.AllDays(),
		Script:        "Hi {name}, following up about {email}",
		Status:        campaigns.StatusRunning,
		CreatedAt:     h.now,
	}
	if mut != nil {
		mut(&c)
	}
	h.campRepo.Put(c)
	h.store.Put(listRef, "u1", rows...)
}

func (h *harness) campaign(t *testing.T) campaigns.Campaign {
	t.Helper()
	c, err := h.campRepo.Get(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	return c
}

func (h *harness) rows(t *testing.T) []calls.CampaignCall {
	t.Helper()
	rows, err := h.callRepo.ListByCampaign(context.Background(), "c1", 0, 0)
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	return rows
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	if err := h.sched.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func ana() contacts.Contact {
	return contacts.Contact{ID: "p1", Name: "Ana", Phone: "+1 555 000 0001", Email: "a@b.com"}
}

func ben() contacts.Contact {
	return contacts.Contact{ID: "p2", Name: "Ben", Phone: "+15550000002"}
}

func cleo() contacts.Contact {
	return contacts.Contact{ID: "p3", Name: "Cleo", Phone: "+15550000003"}
}

func TestTick_CompletesCampaignWithinCap(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(func(c *campaigns.Campaign) { c.DailyCap = 2 }, ana(), ben())

	h.tick(t)

	c := h.campaign(t)
	if c.Status != campaigns.StatusCompleted {
		t.Fatalf("expected completed, got %s", c.Status)
	}
	if c.CurrentDailyCalls != 2 || c.TotalCallsMade != 2 {
		t.Fatalf("unexpected counters: daily=%d total=%d", c.CurrentDailyCalls, c.TotalCallsMade)
	}
	if c.LastExecutionAt == nil {
		t.Fatalf("expected last_execution_at to be recorded")
	}
	rows := h.rows(t)
	if len(rows) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(rows))
	}
	for _, r := range rows {
		if r.Status != calls.CallStatusCalling || r.SIPCallID == "" || r.RoomName == "" {
			t.Fatalf("unexpected call row: %+v", r)
		}
	}
	if rows[0].ContactPhone != "+15550000001" || rows[0].ContactID != "p1" {
		t.Fatalf("expected normalized phone and contact id: %+v", rows[0])
	}
}

func TestTick_SendsAgentMetadata(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana())

	h.tick(t)

	if len(h.dialer.requests) != 1 || len(h.dispatcher.requests) != 1 {
		t.Fatalf("expected one dial and one dispatch")
	}
	dial := h.dialer.requests[0]
	if dial.TrunkID != "ST_1" || dial.PhoneNumber != "+15550000001" {
		t.Fatalf("unexpected dial: %+v", dial)
	}
	var p map[string]any
	if err := json.Unmarshal([]byte(dial.Metadata), &p); err != nil {
		t.Fatalf("participant metadata: %v", err)
	}
	if p["campaignPrompt"] != "Hi Ana, following up about a@b.com" || p["source"] != "campaign" {
		t.Fatalf("unexpected participant metadata: %v", p)
	}

	disp := h.dispatcher.requests[0]
	if disp.RoomName != dial.RoomName || disp.AgentName != "voice-agent" {
		t.Fatalf("dispatch must target the dialed room: %+v", disp)
	}
	var d map[string]any
	if err := json.Unmarshal([]byte(disp.Metadata), &d); err != nil {
		t.Fatalf("dispatch metadata: %v", err)
	}
	if d["campaignId"] != "c1" || d["phone_number"] != "+15550000001" || d["outboundTrunkId"] != "ST_1" {
		t.Fatalf("unexpected dispatch metadata: %v", d)
	}
}

func TestTick_OutsideHoursPausesWithoutCalls(t *testing.T) {
	h := newHarness(t)
	h.now = time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)
	h.addCampaign(func(c *campaigns.Campaign) { c.StartHour, c.EndHour = 9, 17 }, ana())

	h.tick(t)

	c := h.campaign(t)
	if c.Status != campaigns.StatusPaused || c.PauseReason != campaigns.PauseOutsideWindow {
		t.Fatalf("expected outside_window pause, got %s/%s", c.Status, c.PauseReason)
	}
	if c.NextCallAt == nil || !c.NextCallAt.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next_call_at %v", c.NextCallAt)
	}
	if n := len(h.rows(t)); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}

	h.tick(t)
	if again := h.campaign(t); again.Status != c.Status || again.PauseReason != c.PauseReason {
		t.Fatalf("repeated tick changed status: %+v", again)
	}
	if n := len(h.events.OfType(events.CampaignStatusChanged)); n != 1 {
		t.Fatalf("expected a single status change, got %d", n)
	}
	trail, err := h.audit.ListByCampaign(context.Background(), "u1", "c1", 0)
	if err != nil || len(trail) != 1 {
		t.Fatalf("expected one audit event, got %d (%v)", len(trail), err)
	}
	if trail[0].Actor != audit.ActorEngine || trail[0].Message != "running -> paused (outside_window)" {
		t.Fatalf("unexpected audit event: %+v", trail[0])
	}
}

func TestTick_WrongDayMakesNoCalls(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(func(c *campaigns.Campaign) { c.CallingDays = campaigns.CallingDays{time.Saturday} }, ana())

	h.tick(t)

	if n := len(h.rows(t)); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}
	if c := h.campaign(t); c.PauseReason != campaigns.PauseOutsideWindow {
		t.Fatalf("expected outside_window, got %s", c.PauseReason)
	}
}

func TestTick_TrunkLookupFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.trunks.Err = errors.New("phone_number lookup timed out")
	h.addCampaign(nil, ana(), ben())

	h.tick(t)

	c := h.campaign(t)
	if c.Status != campaigns.StatusError {
		t.Fatalf("expected error, got %s", c.Status)
	}
	if !strings.Contains(c.ErrorMessage, "phone_number lookup timed out") {
		t.Fatalf("error message not retained: %q", c.ErrorMessage)
	}
	if n := len(h.rows(t)); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}

	h.tick(t)
	if c := h.campaign(t); c.Status != campaigns.StatusError {
		t.Fatalf("errored campaign must not be retried automatically")
	}
}

func TestTick_ContactSourceFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana())
	h.store.Err = errors.New("csv_contacts unavailable")

	h.tick(t)

	if c := h.campaign(t); c.Status != campaigns.StatusError || !strings.Contains(c.ErrorMessage, "csv_contacts unavailable") {
		t.Fatalf("unexpected campaign: %+v", c)
	}
}

func TestTick_DialFailureDoesNotAbortLoop(t *testing.T) {
	h := newHarness(t)
	h.dialer.fail["+15550000001"] = errors.New("sip trunk rejected call: 403")
	h.addCampaign(nil, ana(), ben())

	h.tick(t)

	rows := h.rows(t)
	if len(rows) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(rows))
	}
	if rows[0].Status != calls.CallStatusFailed || !strings.Contains(rows[0].Notes, "403") {
		t.Fatalf("first call should fail with notes: %+v", rows[0])
	}
	if rows[1].Status != calls.CallStatusCalling {
		t.Fatalf("second call should be calling: %+v", rows[1])
	}
	if c := h.campaign(t); c.Status != campaigns.StatusCompleted {
		t.Fatalf("expected completed, got %s", c.Status)
	}
}

func TestTick_MissingTrunkFailsEachCall(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(func(c *campaigns.Campaign) { c.AssistantID = "a-without-trunk" }, ana())

	h.tick(t)

	rows := h.rows(t)
	if len(rows) != 1 || rows[0].Status != calls.CallStatusFailed || rows[0].Notes != "no outbound trunk configured" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if len(h.dialer.requests) != 0 {
		t.Fatalf("nothing should be dialed without a trunk")
	}
}

func TestTick_DispatchFailureFailsCall(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.err = errors.New("no agent workers available")
	h.addCampaign(nil, ana())

	h.tick(t)

	rows := h.rows(t)
	if len(rows) != 1 || rows[0].Status != calls.CallStatusFailed {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !strings.HasPrefix(rows[0].Notes, "agent dispatch failed") || rows[0].SIPCallID == "" {
		t.Fatalf("expected dispatch failure notes and sip id kept: %+v", rows[0])
	}
}

func TestTick_AnsweredOnDialCountsAnswered(t *testing.T) {
	h := newHarness(t)
	h.dialer.answered = true
	h.addCampaign(nil, ana())

	h.tick(t)

	if rows := h.rows(t); rows[0].Status != calls.CallStatusAnswered {
		t.Fatalf("expected answered, got %s", rows[0].Status)
	}
	if c := h.campaign(t); c.TotalCallsAnswered != 1 {
		t.Fatalf("expected answered counter, got %d", c.TotalCallsAnswered)
	}
}

func TestTick_SkipsDoNotCallContacts(t *testing.T) {
	h := newHarness(t)
	dnc := ben()
	dnc.DoNotCall = true
	h.addCampaign(nil, ana(), dnc, cleo())

	h.tick(t)

	for _, r := range h.rows(t) {
		if r.ContactPhone == "+15550000002" {
			t.Fatalf("do-not-call contact was dialed")
		}
	}
	if n := len(h.rows(t)); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestTick_SkipsAlreadyAttemptedContacts(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana(), ben())
	ctx := context.Background()
	if _, err := h.callRepo.BeginAttempt(ctx, calls.CampaignCall{ID: "old", CampaignID: "c1", ContactID: "p1", ContactPhone: "+15550000001", Status: calls.CallStatusPending, CreatedAt: h.now}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := h.callRepo.Update(ctx, "old", calls.Update{Status: calls.CallStatusFailed, Notes: "earlier"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	h.tick(t)

	if len(h.dialer.requests) != 1 || h.dialer.requests[0].PhoneNumber != "+15550000002" {
		t.Fatalf("expected only Ben dialed, got %+v", h.dialer.requests)
	}
}

func TestTick_DailyCapPausesAndResumesNextDay(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(func(c *campaigns.Campaign) { c.DailyCap = 1 }, ana(), ben(), cleo())

	h.tick(t)
	c := h.campaign(t)
	if c.Status != campaigns.StatusPaused || c.PauseReason != campaigns.PauseDailyCap {
		t.Fatalf("expected daily_cap pause, got %s/%s", c.Status, c.PauseReason)
	}
	if n := len(h.rows(t)); n != 1 {
		t.Fatalf("expected 1 call, got %d", n)
	}

	h.now = h.now.Add(2 * time.Hour)
	h.tick(t)
	if n := len(h.rows(t)); n != 1 {
		t.Fatalf("cap must hold for the rest of the day, got %d calls", n)
	}

	h.now = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	h.tick(t)
	c = h.campaign(t)
	if n := len(h.rows(t)); n != 2 {
		t.Fatalf("expected one more call on the next day, got %d", n)
	}
	if c.CurrentDailyCalls != 1 || c.TotalCallsMade != 2 {
		t.Fatalf("unexpected counters: daily=%d total=%d", c.CurrentDailyCalls, c.TotalCallsMade)
	}
	if c.PauseReason != campaigns.PauseDailyCap {
		t.Fatalf("expected cap pause again, got %s/%s", c.Status, c.PauseReason)
	}
}

func TestTick_AutoResumesWhenWindowOpens(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(func(c *campaigns.Campaign) {
		c.Status = campaigns.StatusPaused
		c.PauseReason = campaigns.PauseOutsideWindow
		c.StartHour, c.EndHour = 9, 17
	}, ana())

	h.tick(t)

	if c := h.campaign(t); c.Status != campaigns.StatusCompleted {
		t.Fatalf("expected auto-resume and completion, got %s", c.Status)
	}
	if n := len(h.rows(t)); n != 1 {
		t.Fatalf("expected 1 call, got %d", n)
	}
}

func TestTick_LeavesUserPauseAlone(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(func(c *campaigns.Campaign) {
		c.Status = campaigns.StatusPaused
		c.PauseReason = campaigns.PauseUser
	}, ana())

	h.tick(t)

	if c := h.campaign(t); c.Status != campaigns.StatusPaused || c.PauseReason != campaigns.PauseUser {
		t.Fatalf("user pause changed: %+v", c)
	}
	if n := len(h.rows(t)); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}
}

func TestTick_HonorsPauseBetweenCalls(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana(), ben(), cleo())
	h.sched.sleep = func(ctx context.Context, d time.Duration) error {
		if d != 2*time.Second {
			t.Errorf("unexpected call delay %s", d)
		}
		_, err := h.camps.Pause(ctx, "u1", "", "c1")
		return err
	}

	h.tick(t)

	if n := len(h.rows(t)); n != 1 {
		t.Fatalf("expected the loop to stop after 1 call, got %d", n)
	}
	if c := h.campaign(t); c.Status != campaigns.StatusPaused || c.PauseReason != campaigns.PauseUser {
		t.Fatalf("expected user pause to stick, got %s/%s", c.Status, c.PauseReason)
	}
}

func TestTick_SkipsCampaignLeasedElsewhere(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana())
	h.sched.locker = busyLocker{}

	h.tick(t)

	if n := len(h.rows(t)); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}
	if c := h.campaign(t); c.Status != campaigns.StatusRunning {
		t.Fatalf("expected campaign untouched, got %s", c.Status)
	}
}

func TestTick_UnrecordedAttemptStopsCampaignForTick(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana())
	h.callRepo.FailBegin = errors.New("insert failed")

	h.tick(t)

	if len(h.dialer.requests) != 0 {
		t.Fatalf("nothing may be dialed without a pending row")
	}
	if c := h.campaign(t); c.Status != campaigns.StatusRunning {
		t.Fatalf("expected campaign to stay running, got %s", c.Status)
	}
}

func TestTick_PublishesAttemptEvents(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana(), ben())

	h.tick(t)

	got := h.events.OfType(events.CampaignCallAttempted)
	if len(got) != 2 {
		t.Fatalf("expected 2 attempt events, got %d", len(got))
	}
	if got[1].Data["daily_calls"] != 2 {
		t.Fatalf("unexpected event data: %v", got[1].Data)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.sched.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// strictCallRepo refuses writes on a cancelled context the way database/sql does.
type strictCallRepo struct {
	*calls.MemoryRepo
}

func (r strictCallRepo) BeginAttempt(ctx context.Context, c calls.CampaignCall) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.MemoryRepo.BeginAttempt(ctx, c)
}

func (r strictCallRepo) Update(ctx context.Context, id string, u calls.Update) (calls.CampaignCall, calls.CounterDelta, error) {
	if err := ctx.Err(); err != nil {
		return calls.CampaignCall{}, calls.CounterDelta{}, err
	}
	return r.MemoryRepo.Update(ctx, id, u)
}

// cancellingDialer simulates SIGTERM arriving while the SIP request is in flight.
type cancellingDialer struct {
	cancel context.CancelFunc
	dials  int
}

func (d *cancellingDialer) Dial(ctx context.Context, req telephony.DialRequest) (telephony.DialResult, error) {
	d.dials++
	d.cancel()
	return telephony.DialResult{}, ctx.Err()
}

func TestTick_ShutdownMidDialStillRecordsAttempt(t *testing.T) {
	h := newHarness(t)
	h.addCampaign(nil, ana(), ben())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dialer := &cancellingDialer{cancel: cancel}
	repo := strictCallRepo{MemoryRepo: h.callRepo}
	exec := NewExecutor(repo, dialer, h.dispatcher, h.events, "voice-agent", nil)
	exec.clock = func() time.Time { return h.now }
	h.sched.executor = exec

	if err := h.sched.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("tick: %v", err)
	}

	rows := h.rows(t)
	if len(rows) != 1 || dialer.dials != 1 {
		t.Fatalf("expected one attempt before shutdown, got rows=%d dials=%d", len(rows), dialer.dials)
	}
	if rows[0].Status != calls.CallStatusFailed || !strings.Contains(rows[0].Notes, "context canceled") {
		t.Fatalf("interrupted attempt must be recorded as failed, got %+v", rows[0])
	}
	if c := h.campaign(t); c.Status != campaigns.StatusRunning || c.TotalCallsMade != 1 {
		t.Fatalf("campaign must stay running for the next tick, got %s made=%d", c.Status, c.TotalCallsMade)
	}
}
