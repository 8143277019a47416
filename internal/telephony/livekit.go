package telephony

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"voiceagents/internal/config"
)

// LiveKit implements SIPDialer and AgentDispatcher against a LiveKit server.
type LiveKit struct {
	sip      *lksdk.SIPClient
	dispatch *lksdk.AgentDispatchClient

	waitUntilAnswered bool
}

func NewLiveKit(cfg config.LiveKitConfig) *LiveKit {
	return &LiveKit{
		sip:               lksdk.NewSIPClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		dispatch:          lksdk.NewAgentDispatchServiceClient(cfg.URL, cfg.APIKey, cfg.APISecret),
		waitUntilAnswered: cfg.WaitUntilAnswered,
	}
}

func (l *LiveKit) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	if err := req.validate(); err != nil {
		return DialResult{}, err
	}
	info, err := l.sip.CreateSIPParticipant(ctx, sipParticipantRequest(req, l.waitUntilAnswered))
	if err != nil {
		return DialResult{}, fmt.Errorf("create sip participant: %w", err)
	}
	return DialResult{
		ParticipantID:       info.GetParticipantId(),
		ParticipantIdentity: info.GetParticipantIdentity(),
		RoomName:            info.GetRoomName(),
		SIPCallID:           info.GetSipCallId(),
		Answered:            l.waitUntilAnswered,
	}, nil
}

func (l *LiveKit) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error) {
	if err := req.validate(); err != nil {
		return DispatchResult{}, err
	}
	d, err := l.dispatch.CreateDispatch(ctx, agentDispatchRequest(req))
	if err != nil {
		return DispatchResult{}, fmt.Errorf("create agent dispatch: %w", err)
	}
	return DispatchResult{DispatchID: d.GetId()}, nil
}

func sipParticipantRequest(req DialRequest, waitUntilAnswered bool) *livekit.CreateSIPParticipantRequest {
	return &livekit.CreateSIPParticipantRequest{
		SipTrunkId:          req.TrunkID,
		SipCallTo:           req.PhoneNumber,
		RoomName:            req.RoomName,
		ParticipantIdentity: req.ParticipantIdentity,
		ParticipantName:     req.ParticipantName,
		ParticipantMetadata: req.Metadata,
		WaitUntilAnswered:   waitUntilAnswered,
	}
}

func agentDispatchRequest(req DispatchRequest) *livekit.CreateAgentDispatchRequest {
	return &livekit.CreateAgentDispatchRequest{
		AgentName: req.AgentName,
		Room:      req.RoomName,
		Metadata:  req.Metadata,
	}
}

var (
	_ SIPDialer       = (*LiveKit)(nil)
	_ AgentDispatcher = (*LiveKit)(nil)
)
