package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voiceagents/internal/calls"
	"voiceagents/internal/campaigns"
	"voiceagents/internal/contacts"
	"voiceagents/internal/telephony"
	"voiceagents/pkg/utils"
)

// Campaigns is the lifecycle surface the engine drives.
type Campaigns interface {
	ListSchedulable(ctx context.Context) ([]campaigns.Campaign, error)
	Reload(ctx context.Context, id string) (campaigns.Campaign, error)
	SoftPause(ctx context.Context, c campaigns.Campaign, reason campaigns.PauseReason, nextAt *time.Time) (campaigns.Campaign, error)
	AutoResume(ctx context.Context, c campaigns.Campaign) (campaigns.Campaign, error)
	Complete(ctx context.Context, c campaigns.Campaign) (campaigns.Campaign, error)
	Fail(ctx context.Context, c campaigns.Campaign, msg string) (campaigns.Campaign, error)
	RollOver(ctx context.Context, c campaigns.Campaign, now time.Time, loc *time.Location) (campaigns.Campaign, error)
	Touch(ctx context.Context, id string, at time.Time, nextAt *time.Time) error
}

// ContactResolver yields a campaign's callable contacts.
type ContactResolver interface {
	Resolve(ctx context.Context, ref contacts.SourceRef) ([]contacts.Contact, error)
}

// AttemptLog lists the calls a campaign already made.
type AttemptLog interface {
	ListAttempted(ctx context.Context, campaignID string) ([]calls.CampaignCall, error)
}

// Options tunes the scheduler. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
	CallDelay    time.Duration
	Location     *time.Location
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 30 * time.Second
	}
	if o.CallDelay < 0 {
		o.CallDelay = 0
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Scheduler is the campaign engine: a fixed-interval loop that walks
// schedulable campaigns one at a time and dials their contacts sequentially.
type Scheduler struct {
	campaigns Campaigns
	contacts  ContactResolver
	attempts  AttemptLog
	trunks    telephony.TrunkResolver
	executor  *Executor
	locker    Locker
	opts      Options
	log       *slog.Logger

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(cs Campaigns, resolver ContactResolver, attempts AttemptLog, trunks telephony.TrunkResolver, executor *Executor, locker Locker, opts Options, log *slog.Logger) *Scheduler {
	if locker == nil {
		locker = NoopLocker{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		campaigns: cs,
		contacts:  resolver,
		attempts:  attempts,
		trunks:    trunks,
		executor:  executor,
		locker:    locker,
		opts:      opts.withDefaults(),
		log:       log,
		clock:     time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run ticks immediately and then every poll interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("campaign engine started",
		"poll_interval", s.opts.PollInterval.String(),
		"call_delay", s.opts.CallDelay.String(),
		"timezone", s.opts.Location.String(),
	)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("engine tick failed", "err", err)
		}
		select {
		case <-ctx.Done():
			s.log.Info("campaign engine stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick processes every schedulable campaign once, sequentially.
func (s *Scheduler) Tick(ctx context.Context) error {
	list, err := s.campaigns.ListSchedulable(ctx)
	if err != nil {
		return fmt.Errorf("list schedulable campaigns: %w", err)
	}
	for _, c := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.safeProcess(ctx, c)
	}
	return nil
}

func (s *Scheduler) safeProcess(ctx context.Context, c campaigns.Campaign) {
	log := s.log.With("campaign_id", c.ID, "user_id", c.UserID)
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("campaign processing panic: %v", r)
			log.Error("campaign processing panicked", "err", err)
			utils.CaptureError(err, map[string]string{"campaign_id": c.ID, "component": "campaign_engine"})
		}
	}()
	if err := s.processCampaign(ctx, log, c); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("campaign processing failed", "err", err)
	}
}

func (s *Scheduler) now() time.Time {
	return s.clock().In(s.opts.Location)
}

func (s *Scheduler) processCampaign(ctx context.Context, log *slog.Logger, c campaigns.Campaign) error {
	lease, ok, err := s.locker.Acquire(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("acquire campaign lease: %w", err)
	}
	if !ok {
		log.Debug("campaign lease held elsewhere, skipping")
		return nil
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("failed to release campaign lease", "err", err)
		}
	}()

	now := s.now()
	c, err = s.campaigns.RollOver(ctx, c, now, s.opts.Location)
	if err != nil {
		return fmt.Errorf("roll over daily counter: %w", err)
	}

	gate := campaigns.CheckGate(c, now)
	if !gate.Allowed {
		return s.holdBack(ctx, log, c, gate.Reason, now)
	}
	if c.Status == campaigns.StatusPaused {
		if c, err = s.campaigns.AutoResume(ctx, c); err != nil {
			return fmt.Errorf("auto-resume: %w", err)
		}
	}
	if err := s.touch(ctx, c.ID, now); err != nil {
		return err
	}

	trunk, err := s.trunks.ResolveTrunk(ctx, c.AssistantID)
	if err != nil {
		return s.fail(ctx, log, c, fmt.Errorf("resolve outbound trunk: %w", err))
	}
	targets, err := s.contacts.Resolve(ctx, c.Source())
	if err != nil {
		return s.fail(ctx, log, c, fmt.Errorf("resolve contact source: %w", err))
	}
	attempted, err := s.attempts.ListAttempted(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list attempted calls: %w", err)
	}
	targets = excludeAttempted(targets, attempted)
	log.Info("processing campaign", "eligible_contacts", len(targets), "daily_calls", c.CurrentDailyCalls)

	for i, ct := range targets {
		if i > 0 {
			if err := s.sleep(ctx, s.opts.CallDelay); err != nil {
				return err
			}
		}

		cur, err := s.campaigns.Reload(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("reload campaign: %w", err)
		}
		if cur.Status != campaigns.StatusRunning {
			log.Info("campaign no longer running, stopping loop", "status", string(cur.Status))
			return nil
		}
		now = s.now()
		if cur, err = s.campaigns.RollOver(ctx, cur, now, s.opts.Location); err != nil {
			return fmt.Errorf("roll over daily counter: %w", err)
		}
		if gate := campaigns.CheckGate(cur, now); !gate.Allowed {
			return s.holdBack(ctx, log, cur, gate.Reason, now)
		}
		if ok, err := lease.Extend(ctx); err != nil || !ok {
			log.Warn("campaign lease lost, stopping loop", "err", err)
			return nil
		}

		if _, err := s.executor.Execute(ctx, Attempt{Campaign: cur, Trunk: trunk, Contact: ct}); err != nil {
			return err
		}
		if err := s.touch(context.WithoutCancel(ctx), c.ID, s.now()); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	cur, err := s.campaigns.Reload(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("reload campaign: %w", err)
	}
	if cur.Status != campaigns.StatusRunning {
		return nil
	}
	if _, err := s.campaigns.Complete(ctx, cur); err != nil {
		if errors.Is(err, campaigns.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("complete campaign: %w", err)
	}
	log.Info("campaign completed", "calls_made", cur.TotalCallsMade)
	return s.campaigns.Touch(ctx, c.ID, s.now().UTC(), nil)
}

// holdBack soft-pauses c for reason. A campaign already paused for the same
// reason is only touched, so repeated ticks do not produce transitions.
func (s *Scheduler) holdBack(ctx context.Context, log *slog.Logger, c campaigns.Campaign, reason campaigns.PauseReason, now time.Time) error {
	var nextAt *time.Time
	if t := campaigns.NextEligibleTime(c, reason, now); !t.IsZero() {
		u := t.UTC()
		nextAt = &u
	}
	if c.Status == campaigns.StatusPaused && c.PauseReason == reason {
		return s.campaigns.Touch(ctx, c.ID, now.UTC(), nextAt)
	}
	if _, err := s.campaigns.SoftPause(ctx, c, reason, nextAt); err != nil {
		if errors.Is(err, campaigns.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("soft pause: %w", err)
	}
	log.Info("campaign paused by schedule", "reason", string(reason))
	return s.campaigns.Touch(ctx, c.ID, now.UTC(), nextAt)
}

func (s *Scheduler) touch(ctx context.Context, id string, now time.Time) error {
	next := now.Add(s.opts.CallDelay).UTC()
	if err := s.campaigns.Touch(ctx, id, now.UTC(), &next); err != nil {
		return fmt.Errorf("touch campaign: %w", err)
	}
	return nil
}

func (s *Scheduler) fail(ctx context.Context, log *slog.Logger, c campaigns.Campaign, cause error) error {
	log.Error("campaign failed", "err", cause)
	utils.CaptureError(cause, map[string]string{"campaign_id": c.ID, "component": "campaign_engine"})
	if _, err := s.campaigns.Fail(ctx, c, cause.Error()); err != nil && !errors.Is(err, campaigns.ErrInvalidTransition) {
		return fmt.Errorf("mark campaign error: %w", err)
	}
	return nil
}

// excludeAttempted drops contacts that already have a non-pending call row,
// matched by contact id or by phone.
func excludeAttempted(targets []contacts.Contact, attempted []calls.CampaignCall) []contacts.Contact {
	if len(attempted) == 0 {
		return targets
	}
	ids := make(map[string]struct{}, len(attempted))
	phones := make(map[string]struct{}, len(attempted))
	for _, a := range attempted {
		if a.ContactID != "" {
			ids[a.ContactID] = struct{}{}
		}
		if k := contacts.PhoneKey(a.ContactPhone); k != "" {
			phones[k] = struct{}{}
		}
	}
	out := make([]contacts.Contact, 0, len(targets))
	for _, ct := range targets {
		if id := ct.ListContactID(); id != "" {
			if _, done := ids[id]; done {
				continue
			}
		}
		if _, done := phones[contacts.PhoneKey(ct.Phone)]; done {
			continue
		}
		out = append(out, ct)
	}
	return out
}
