package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"voiceagents/internal/audit"
	"voiceagents/internal/calls"
	"voiceagents/internal/contacts"
	"voiceagents/internal/telephony"
)

// reuseWindow is how long an in-progress manual call absorbs repeat requests.
const reuseWindow = 2 * time.Minute

// ErrCallFailed wraps a telephony failure on a manual call.
var ErrCallFailed = errors.New("outbound call failed")

// ManualRequest is one ad-hoc call placed from the API.
type ManualRequest struct {
	UserID      string
	IP          string
	AssistantID string
	PhoneNumber string
	ContactName string
}

// ManualCaller places single assistant calls outside any campaign.
type ManualCaller struct {
	repo       calls.ManualRepository
	trunks     telephony.TrunkResolver
	dialer     telephony.SIPDialer
	dispatcher telephony.AgentDispatcher
	audit      *audit.Service
	agentName  string
	log        *slog.Logger

	// mu serializes the find-or-create step within this process.
	mu     sync.Mutex
	clock  func() time.Time
	newID  func() string
	encode func(telephony.CallMetadata) (participant, dispatch string, err error)
}

func NewManualCaller(repo calls.ManualRepository, trunks telephony.TrunkResolver, dialer telephony.SIPDialer, dispatcher telephony.AgentDispatcher, auditSvc *audit.Service, agentName string, log *slog.Logger) *ManualCaller {
	if log == nil {
		log = slog.Default()
	}
	return &ManualCaller{
		repo:       repo,
		trunks:     trunks,
		dialer:     dialer,
		dispatcher: dispatcher,
		audit:      auditSvc,
		agentName:  agentName,
		log:        log,
		clock:      time.Now,
		newID:      uuid.NewString,
		encode:     encodeMetadata,
	}
}

func encodeMetadata(meta telephony.CallMetadata) (string, string, error) {
	participant, err := telephony.ParticipantMetadata(meta)
	if err != nil {
		return "", "", fmt.Errorf("encode participant metadata: %w", err)
	}
	dispatch, err := telephony.DispatchMetadata(meta)
	if err != nil {
		return "", "", fmt.Errorf("encode dispatch metadata: %w", err)
	}
	return participant, dispatch, nil
}

// Call places the call, or returns a matching in-progress call created by the
// same user for the same assistant within the reuse window. reused reports
// which happened.
func (m *ManualCaller) Call(ctx context.Context, req ManualRequest) (call calls.ManualCall, reused bool, err error) {
	if req.UserID == "" || req.AssistantID == "" {
		return calls.ManualCall{}, false, fmt.Errorf("%w: assistant_id required", calls.ErrInvalidArgument)
	}
	phone, ok := contacts.NormalizePhone(req.PhoneNumber)
	if !ok {
		return calls.ManualCall{}, false, fmt.Errorf("%w: phone_number is not dialable", calls.ErrInvalidArgument)
	}

	call, reused, err = m.reserve(ctx, req, phone)
	if err != nil || reused {
		return call, reused, err
	}
	log := m.log.With("call_id", call.ID, "user_id", req.UserID, "assistant_id", req.AssistantID)

	if m.audit != nil {
		if err := m.audit.LogManualCall(ctx, req.UserID, req.IP, call.ID, ""); err != nil {
			log.Warn("audit append failed", "err", err)
		}
	}

	trunk, err := m.trunks.ResolveTrunk(ctx, req.AssistantID)
	if err != nil {
		m.finish(ctx, log, &call, calls.CallStatusFailed, "resolve outbound trunk: "+err.Error())
		return call, false, fmt.Errorf("resolve outbound trunk: %w", err)
	}
	if trunk.OutboundTrunkID == "" {
		m.finish(ctx, log, &call, calls.CallStatusFailed, telephony.ErrNoOutboundTrunk.Error())
		return call, false, telephony.ErrNoOutboundTrunk
	}

	meta := telephony.AssistantCall{
		AgentID:      req.AssistantID,
		CallID:       call.ID,
		ContactName:  req.ContactName,
		ContactPhone: phone,
		TrunkID:      trunk.OutboundTrunkID,
	}
	participantMeta, dispatchMeta, err := m.encode(meta)
	if err != nil {
		m.finish(ctx, log, &call, calls.CallStatusFailed, err.Error())
		return call, false, err
	}

	room := telephony.AssistantRoomName(call.ID)
	res, err := m.dialer.Dial(ctx, telephony.DialRequest{
		TrunkID:             trunk.OutboundTrunkID,
		PhoneNumber:         phone,
		RoomName:            room,
		ParticipantIdentity: telephony.ParticipantIdentity(call.ID),
		ParticipantName:     req.ContactName,
		Metadata:            participantMeta,
	})
	if err != nil {
		m.finish(ctx, log, &call, calls.CallStatusFailed, err.Error())
		return call, false, fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	if res.RoomName != "" {
		room = res.RoomName
	}
	call.SIPCallID = res.SIPCallID
	call.RoomName = room
	m.finish(ctx, log, &call, calls.CallStatusCalling, "")

	if _, err := m.dispatcher.Dispatch(ctx, telephony.DispatchRequest{RoomName: room, AgentName: m.agentName, Metadata: dispatchMeta}); err != nil {
		m.finish(ctx, log, &call, calls.CallStatusFailed, "agent dispatch failed: "+err.Error())
		return call, false, fmt.Errorf("%w: %v", ErrCallFailed, err)
	}
	log.Info("manual call placed", "room", room)
	return call, false, nil
}

func (m *ManualCaller) reserve(ctx context.Context, req ManualRequest, phone string) (calls.ManualCall, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock().UTC()
	existing, found, err := m.repo.FindRecentInProgress(ctx, req.UserID, req.AssistantID, now.Add(-reuseWindow))
	if err != nil {
		return calls.ManualCall{}, false, err
	}
	if found {
		m.log.Info("reusing in-progress manual call", "call_id", existing.ID, "user_id", req.UserID)
		return existing, true, nil
	}

	call := calls.ManualCall{
		ID:          m.newID(),
		UserID:      req.UserID,
		AssistantID: req.AssistantID,
		PhoneNumber: phone,
		ContactName: req.ContactName,
		Status:      calls.CallStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.repo.CreateManual(ctx, call); err != nil {
		return calls.ManualCall{}, false, err
	}
	return call, false, nil
}

func (m *ManualCaller) finish(ctx context.Context, log *slog.Logger, call *calls.ManualCall, status calls.CallStatus, notes string) {
	call.Status = status
	if notes != "" {
		call.Notes = notes
	}
	call.UpdatedAt = m.clock().UTC()
	if err := m.repo.UpdateManual(ctx, *call); err != nil {
		log.Error("failed to update manual call", "status", string(status), "err", err)
	}
}
