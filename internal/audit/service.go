package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only. No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByCampaign(ctx context.Context, userID, campaignID string, limit int) ([]Event, error)
}

const (
	defaultTrailLimit = 100
	maxTrailLimit     = 500
)

// Service records who did what to which campaign or call.
//
// Callers treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.UserID == "" || e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// CampaignTrail returns the newest events for one of the user's campaigns.
// A non-positive limit means the default; limits above the maximum are clamped.
func (s *Service) CampaignTrail(ctx context.Context, userID, campaignID string, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if userID == "" || campaignID == "" {
		return nil, ErrInvalidEvent
	}
	switch {
	case limit <= 0:
		limit = defaultTrailLimit
	case limit > maxTrailLimit:
		limit = maxTrailLimit
	}
	return s.repo.ListByCampaign(ctx, userID, campaignID, limit)
}

// LogCampaignStatus records a campaign lifecycle change.
func (s *Service) LogCampaignStatus(ctx context.Context, userID, actor, ip, campaignID, from, to, reason string) error {
	msg := from + " -> " + to
	if reason != "" {
		msg += " (" + reason + ")"
	}
	return s.Append(ctx, Event{
		UserID:     userID,
		Type:       EventTypeCampaignStatusChanged,
		Actor:      actor,
		IPAddress:  ip,
		CampaignID: campaignID,
		Message:    msg,
	})
}

// LogCampaignCreated records a new campaign.
func (s *Service) LogCampaignCreated(ctx context.Context, userID, ip, campaignID, name string) error {
	return s.Append(ctx, Event{
		UserID:     userID,
		Type:       EventTypeCampaignCreated,
		Actor:      ActorUser,
		IPAddress:  ip,
		CampaignID: campaignID,
		Message:    name,
	})
}

// LogOutcome records an outcome written against a campaign call.
func (s *Service) LogOutcome(ctx context.Context, userID, ip, campaignID, callID, outcome string) error {
	return s.Append(ctx, Event{
		UserID:     userID,
		Type:       EventTypeCallOutcomeRecorded,
		Actor:      ActorUser,
		IPAddress:  ip,
		CampaignID: campaignID,
		CallID:     callID,
		Message:    outcome,
	})
}

// LogManualCall records an ad-hoc outbound call placed through the API.
func (s *Service) LogManualCall(ctx context.Context, userID, ip, callID, metadata string) error {
	return s.Append(ctx, Event{
		UserID:    userID,
		Type:      EventTypeManualCallInitiated,
		Actor:     ActorUser,
		IPAddress: ip,
		CallID:    callID,
		Message:   "manual outbound call",
		Metadata:  metadata,
	})
}
