package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voiceagents/internal/calls"
	"voiceagents/internal/campaigns"
	"voiceagents/internal/contacts"
	"voiceagents/internal/events"
	"voiceagents/internal/telephony"
)

// ErrAttemptNotRecorded means the pending row could not be written, so no
// call was placed.
var ErrAttemptNotRecorded = errors.New("engine: call attempt not recorded")

// Attempt is one contact to dial for one campaign.
type Attempt struct {
	Campaign campaigns.Campaign
	Trunk    telephony.Trunk
	Contact  contacts.Contact
}

// Executor drives a single outbound attempt from a selected contact to a
// recorded campaign_calls row.
type Executor struct {
	calls      calls.Repository
	dialer     telephony.SIPDialer
	dispatcher telephony.AgentDispatcher
	events     events.Publisher
	agentName  string
	log        *slog.Logger

	clock func() time.Time
	newID func() string
}

func NewExecutor(repo calls.Repository, dialer telephony.SIPDialer, dispatcher telephony.AgentDispatcher, pub events.Publisher, agentName string, log *slog.Logger) *Executor {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		calls:      repo,
		dialer:     dialer,
		dispatcher: dispatcher,
		events:     pub,
		agentName:  agentName,
		log:        log,
		clock:      time.Now,
		newID:      uuid.NewString,
	}
}

// Execute records a pending row, then dials and dispatches. Telephony failures
// are written to the row and never returned; only ErrAttemptNotRecorded is.
func (x *Executor) Execute(ctx context.Context, a Attempt) (calls.CampaignCall, error) {
	c, ct := a.Campaign, a.Contact
	now := x.clock().UTC()
	row := calls.CampaignCall{
		ID:           x.newID(),
		CampaignID:   c.ID,
		ContactID:    ct.ListContactID(),
		ContactName:  ct.Name,
		ContactPhone: ct.Phone,
		ContactEmail: ct.Email,
		Status:       calls.CallStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	daily, err := x.calls.BeginAttempt(ctx, row)
	if err != nil {
		return calls.CampaignCall{}, fmt.Errorf("%w: %v", ErrAttemptNotRecorded, err)
	}

	log := x.log.With("campaign_id", c.ID, "call_id", row.ID)
	row = x.place(ctx, log, a, row)

	if err := x.events.Publish(context.WithoutCancel(ctx), events.Event{
		Type:       events.CampaignCallAttempted,
		UserID:     c.UserID,
		CampaignID: c.ID,
		CallID:     row.ID,
		Data: map[string]any{
			"status":      string(row.Status),
			"daily_calls": daily,
			"room_name":   row.RoomName,
		},
		OccurredAt: x.clock().UTC(),
	}); err != nil {
		log.Warn("event publish failed", "err", err)
	}
	return row, nil
}

func (x *Executor) place(ctx context.Context, log *slog.Logger, a Attempt, row calls.CampaignCall) calls.CampaignCall {
	c, ct := a.Campaign, a.Contact
	if a.Trunk.OutboundTrunkID == "" {
		return x.fail(ctx, log, row, telephony.ErrNoOutboundTrunk.Error())
	}

	meta := telephony.CampaignCall{
		AgentID:      c.AssistantID,
		CallID:       row.ID,
		CampaignID:   c.ID,
		ContactName:  ct.Name,
		ContactPhone: ct.Phone,
		Prompt:       campaigns.Interpolate(c.Script, ct.Name, ct.Email, ct.Phone),
		TrunkID:      a.Trunk.OutboundTrunkID,
	}
	participantMeta, err := telephony.ParticipantMetadata(meta)
	if err != nil {
		return x.fail(ctx, log, row, "encode participant metadata: "+err.Error())
	}
	dispatchMeta, err := telephony.DispatchMetadata(meta)
	if err != nil {
		return x.fail(ctx, log, row, "encode dispatch metadata: "+err.Error())
	}

	room := telephony.CampaignRoomName(c.ID, row.ID)
	res, err := x.dialer.Dial(ctx, telephony.DialRequest{
		TrunkID:             a.Trunk.OutboundTrunkID,
		PhoneNumber:         ct.Phone,
		RoomName:            room,
		ParticipantIdentity: telephony.ParticipantIdentity(row.ID),
		ParticipantName:     ct.Name,
		Metadata:            participantMeta,
	})
	if err != nil {
		return x.fail(ctx, log, row, err.Error())
	}

	status := calls.CallStatusCalling
	if res.Answered {
		status = calls.CallStatusAnswered
	}
	if res.RoomName != "" {
		room = res.RoomName
	}
	row = x.update(ctx, log, row, calls.Update{Status: status, SIPCallID: res.SIPCallID, RoomName: room})

	if _, err := x.dispatcher.Dispatch(ctx, telephony.DispatchRequest{
		RoomName:  room,
		AgentName: x.agentName,
		Metadata:  dispatchMeta,
	}); err != nil {
		return x.fail(ctx, log, row, "agent dispatch failed: "+err.Error())
	}
	log.Info("campaign call placed", "status", string(row.Status), "room", room)
	return row
}

func (x *Executor) fail(ctx context.Context, log *slog.Logger, row calls.CampaignCall, notes string) calls.CampaignCall {
	log.Warn("campaign call failed", "notes", notes)
	return x.update(ctx, log, row, calls.Update{Status: calls.CallStatusFailed, Notes: notes})
}

// update writes u and returns the new row. On a write error the previous row
// is returned and the error logged; the loop moves on either way. The write
// ignores cancellation so an attempt interrupted by shutdown still moves out
// of pending.
func (x *Executor) update(ctx context.Context, log *slog.Logger, row calls.CampaignCall, u calls.Update) calls.CampaignCall {
	u.At = x.clock().UTC()
	next, _, err := x.calls.Update(context.WithoutCancel(ctx), row.ID, u)
	if err != nil {
		log.Error("failed to update campaign call", "status", string(u.Status), "err", err)
		return row
	}
	return next
}
