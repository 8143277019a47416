package campaigns

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"voiceagents/internal/audit"
	"voiceagents/internal/contacts"
	"voiceagents/internal/events"
)

const defaultDailyCap = 100

// SourceDirectory checks and updates the contact sources a campaign points at.
type SourceDirectory interface {
	OwnedBy(ctx context.Context, ref contacts.SourceRef, userID string) (bool, error)
	MarkDoNotCall(ctx context.Context, ref contacts.SourceRef, phone string) error
}

// Service owns the campaign lifecycle. Control commands come from the API;
// scheduling transitions come from the engine.
type Service struct {
	repo    Repository
	sources SourceDirectory
	audit   *audit.Service
	events  events.Publisher
	log     *slog.Logger
	clock   func() time.Time
}

func NewService(repo Repository, sources SourceDirectory, auditSvc *audit.Service, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, sources: sources, audit: auditSvc, events: pub, log: log, clock: time.Now}
}

// CreateInput is the body of POST /campaigns. Pointer fields are optional.
type CreateInput struct {
	Name          string
	Description   string
	AssistantID   string
	ContactSource contacts.SourceKind
	ContactListID string
	CSVFileID     string
	DailyCap      *int
	CallingDays   []string
	StartHour     *int
	EndHour       *int
	Script        string
}

func (s *Service) Create(ctx context.Context, userID, ip string, in CreateInput) (Campaign, error) {
	c, err := s.validate(userID, in)
	if err != nil {
		return Campaign{}, err
	}
	ok, err := s.sources.OwnedBy(ctx, c.Source(), userID)
	if err != nil {
		return Campaign{}, err
	}
	if !ok {
		return Campaign{}, ErrSourceNotOwned
	}

	now := s.clock().UTC()
	c.ID = uuid.NewString()
	c.Status = StatusIdle
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.repo.Create(ctx, c); err != nil {
		return Campaign{}, err
	}
	if s.audit != nil {
		if err := s.audit.LogCampaignCreated(ctx, userID, ip, c.ID, c.Name); err != nil {
			s.log.Warn("audit append failed", "campaign_id", c.ID, "err", err)
		}
	}
	s.log.Info("campaign created", "campaign_id", c.ID, "user_id", userID, "source", string(c.ContactSource))
	return c, nil
}

func (s *Service) validate(userID string, in CreateInput) (Campaign, error) {
	bad := func(msg string) (Campaign, error) {
		return Campaign{}, fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
	}
	if userID == "" {
		return bad("user_id required")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return bad("name required")
	}
	if strings.TrimSpace(in.AssistantID) == "" {
		return bad("assistant_id required")
	}

	c := Campaign{
		UserID:        userID,
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		AssistantID:   strings.TrimSpace(in.AssistantID),
		ContactSource: in.ContactSource,
		Script:        in.Script,
		DailyCap:      defaultDailyCap,
	}
	listID, fileID := strings.TrimSpace(in.ContactListID), strings.TrimSpace(in.CSVFileID)
	switch in.ContactSource {
	case contacts.SourceContactList:
		if listID == "" || fileID != "" {
			return bad("contact_source contact_list requires contact_list_id only")
		}
		c.ContactListID = listID
	case contacts.SourceCSVFile:
		if fileID == "" || listID != "" {
			return bad("contact_source csv_file requires csv_file_id only")
		}
		c.CSVFileID = fileID
	default:
		return bad("contact_source must be contact_list or csv_file")
	}

	if in.DailyCap != nil {
		if *in.DailyCap <= 0 {
			return bad("daily_cap must be positive")
		}
		c.DailyCap = *in.DailyCap
	}

	c.CallingDays = AllDays()
	if len(in.CallingDays) > 0 {
		days, err := ParseCallingDays(in.CallingDays)
		if err != nil {
			return Campaign{}, err
		}
		c.CallingDays = days
	}

	if in.StartHour != nil {
		c.StartHour = *in.StartHour
	}
	if in.EndHour != nil {
		c.EndHour = *in.EndHour
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		return bad("start_hour must be within [0,23]")
	}
	if c.EndHour < 0 || c.EndHour > 24 {
		return bad("end_hour must be within [0,24]")
	}
	if c.StartHour == c.EndHour && c.StartHour != 0 {
		return bad("start_hour and end_hour must differ")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Campaign, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (Campaign, error) {
	if userID == "" || id == "" {
		return Campaign{}, ErrInvalidArgument
	}
	return s.repo.GetForUser(ctx, userID, id)
}

// Start moves an idle or errored campaign to running.
func (s *Service) Start(ctx context.Context, userID, ip, id string) (Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return Campaign{}, err
	}
	if c.Source().ID == "" {
		return Campaign{}, fmt.Errorf("%w: campaign has no contact source", ErrInvalidArgument)
	}
	return s.command(ctx, c, ip, fromStart, StatusUpdate{Status: StatusRunning})
}

// Pause takes a user pause. A campaign already paused by the user is returned unchanged.
func (s *Service) Pause(ctx context.Context, userID, ip, id string) (Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return Campaign{}, err
	}
	if c.Status == StatusPaused && c.PauseReason == PauseUser {
		return c, nil
	}
	return s.command(ctx, c, ip, fromPause, StatusUpdate{Status: StatusPaused, PauseReason: PauseUser})
}

// Resume lifts any pause.
func (s *Service) Resume(ctx context.Context, userID, ip, id string) (Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return Campaign{}, err
	}
	return s.command(ctx, c, ip, fromResume, StatusUpdate{Status: StatusRunning})
}

// Stop returns the campaign to idle. Counters are kept.
func (s *Service) Stop(ctx context.Context, userID, ip, id string) (Campaign, error) {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return Campaign{}, err
	}
	return s.command(ctx, c, ip, fromStop, StatusUpdate{Status: StatusIdle})
}

func (s *Service) command(ctx context.Context, c Campaign, ip string, from []State, u StatusUpdate) (Campaign, error) {
	return s.transition(ctx, c, audit.ActorUser, ip, from, u)
}

func (s *Service) transition(ctx context.Context, c Campaign, actor, ip string, from []State, u StatusUpdate) (Campaign, error) {
	u.At = s.clock().UTC()
	next, err := s.repo.UpdateStatus(ctx, c.ID, from, u)
	if err != nil {
		return Campaign{}, err
	}

	log := s.log.With("campaign_id", c.ID, "user_id", c.UserID, "actor", actor)
	log.Info("campaign status changed", "from", string(c.Status), "to", string(next.Status), "reason", string(next.PauseReason))
	if s.audit != nil {
		reason := string(next.PauseReason)
		if next.Status == StatusError {
			reason = next.ErrorMessage
		}
		if err := s.audit.LogCampaignStatus(ctx, c.UserID, actor, ip, c.ID, string(c.Status), string(next.Status), reason); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}
	data := map[string]any{"from": string(c.Status), "to": string(next.Status)}
	if next.PauseReason != "" {
		data["pause_reason"] = string(next.PauseReason)
	}
	if next.ErrorMessage != "" {
		data["error_message"] = next.ErrorMessage
	}
	if err := s.events.Publish(ctx, events.Event{
		Type:       events.CampaignStatusChanged,
		UserID:     c.UserID,
		CampaignID: c.ID,
		Data:       data,
		OccurredAt: u.At,
	}); err != nil {
		log.Warn("event publish failed", "err", err)
	}
	return next, nil
}

// MarkDoNotCall flags phone in the campaign's contact source.
// It satisfies calls.DoNotCallSink.
func (s *Service) MarkDoNotCall(ctx context.Context, campaignID, phone string) error {
	c, err := s.repo.Get(ctx, campaignID)
	if err != nil {
		return err
	}
	return s.sources.MarkDoNotCall(ctx, c.Source(), phone)
}
