package calls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"voiceagents/internal/audit"
	"voiceagents/internal/events"
)

// DoNotCallSink flags the contact behind a campaign call so no future campaign dials it.
type DoNotCallSink interface {
	MarkDoNotCall(ctx context.Context, campaignID, phone string) error
}

// Service exposes call reads and the post-call updates written by the voice
// agent or a reviewer.
type Service struct {
	repo   Repository
	dnc    DoNotCallSink
	audit  *audit.Service
	events events.Publisher
	log    *slog.Logger
	clock  func() time.Time
}

func NewService(repo Repository, dnc DoNotCallSink, auditSvc *audit.Service, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, dnc: dnc, audit: auditSvc, events: pub, log: log, clock: time.Now}
}

// StatusChange is the body of a status update.
type StatusChange struct {
	Status          CallStatus
	DurationSeconds *int
	Notes           string
}

// OutcomeChange is the body of an outcome update.
type OutcomeChange struct {
	Outcome         Outcome
	DurationSeconds *int
	Notes           string
}

// ListForCampaign returns a page of a campaign's calls. Ownership of the
// campaign is checked by the caller.
func (s *Service) ListForCampaign(ctx context.Context, campaignID string, limit, offset int) ([]CampaignCall, error) {
	if campaignID == "" || limit < 0 || offset < 0 {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByCampaign(ctx, campaignID, limit, offset)
}

func (s *Service) Get(ctx context.Context, userID, callID string) (CampaignCall, error) {
	if userID == "" || callID == "" {
		return CampaignCall{}, ErrInvalidArgument
	}
	return s.repo.GetOwned(ctx, userID, callID)
}

// UpdateStatus moves a call forward along its state machine.
func (s *Service) UpdateStatus(ctx context.Context, userID, callID string, in StatusChange) (CampaignCall, error) {
	if !in.Status.Valid() {
		return CampaignCall{}, fmt.Errorf("%w: status", ErrInvalidArgument)
	}
	if _, err := s.Get(ctx, userID, callID); err != nil {
		return CampaignCall{}, err
	}
	c, _, err := s.repo.Update(ctx, callID, Update{
		Status:          in.Status,
		DurationSeconds: in.DurationSeconds,
		Notes:           in.Notes,
		At:              s.clock().UTC(),
	})
	return c, err
}

// RecordOutcome writes the post-call classification once. A call that is still
// live is completed first.
func (s *Service) RecordOutcome(ctx context.Context, userID, ip, callID string, in OutcomeChange) (CampaignCall, error) {
	if !in.Outcome.Valid() {
		return CampaignCall{}, fmt.Errorf("%w: outcome", ErrInvalidArgument)
	}
	prev, err := s.Get(ctx, userID, callID)
	if err != nil {
		return CampaignCall{}, err
	}
	c, _, err := s.repo.Update(ctx, callID, Update{
		Outcome:         in.Outcome,
		DurationSeconds: in.DurationSeconds,
		Notes:           in.Notes,
		At:              s.clock().UTC(),
	})
	if err != nil {
		return CampaignCall{}, err
	}
	log := s.log.With("campaign_id", c.CampaignID, "call_id", c.ID, "outcome", string(c.Outcome))
	if prev.Outcome != "" {
		// Same outcome again: Update rejects a different one.
		log.Debug("call outcome repeated, side effects skipped")
		return c, nil
	}
	if in.Outcome == OutcomeDoNotCall && s.dnc != nil {
		if err := s.dnc.MarkDoNotCall(ctx, c.CampaignID, c.ContactPhone); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("failed to flag contact as do-not-call", "err", err)
		}
	}
	if s.audit != nil {
		if err := s.audit.LogOutcome(ctx, userID, ip, c.CampaignID, c.ID, string(c.Outcome)); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	if err := s.events.Publish(ctx, events.Event{
		Type:       events.CallOutcomeRecorded,
		UserID:     userID,
		CampaignID: c.CampaignID,
		CallID:     c.ID,
		Data:       map[string]any{"outcome": string(c.Outcome), "status": string(c.Status)},
		OccurredAt: s.clock().UTC(),
	}); err != nil {
		log.Warn("event publish failed", "err", err)
	}
	log.Info("call outcome recorded")
	return c, nil
}
