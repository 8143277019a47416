package telephony

import (
	"context"
	"errors"
)

// SIPDialer places the outbound call leg: a SIP participant joined to a room.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic.
type SIPDialer interface {
	Dial(ctx context.Context, req DialRequest) (DialResult, error)
}

// AgentDispatcher asks the voice-agent orchestrator to join a room.
type AgentDispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (DispatchResult, error)
}

type DialRequest struct {
	TrunkID     string `json:"trunk_id"`
	PhoneNumber string `json:"phone_number"`
	RoomName    string `json:"room_name"`

	ParticipantIdentity string `json:"participant_identity"`
	ParticipantName     string `json:"participant_name,omitempty"`

	// Metadata is the JSON-encoded participant payload; see ParticipantMetadata.
	Metadata string `json:"metadata,omitempty"`
}

type DialResult struct {
	ParticipantID       string `json:"participant_id"`
	ParticipantIdentity string `json:"participant_identity"`
	RoomName            string `json:"room_name"`
	SIPCallID           string `json:"sip_call_id"`

	// Answered is true when the provider waited for pickup before returning.
	Answered bool `json:"answered"`
}

type DispatchRequest struct {
	RoomName  string `json:"room_name"`
	AgentName string `json:"agent_name"`

	// Metadata is the JSON-encoded dispatch payload; see DispatchMetadata.
	Metadata string `json:"metadata,omitempty"`
}

type DispatchResult struct {
	DispatchID string `json:"dispatch_id"`
}

var (
	ErrNoOutboundTrunk = errors.New("no outbound trunk configured")
	ErrInvalidRequest  = errors.New("telephony: invalid request")
)

func (r DialRequest) validate() error {
	if r.TrunkID == "" {
		return ErrNoOutboundTrunk
	}
	if r.PhoneNumber == "" || r.RoomName == "" || r.ParticipantIdentity == "" {
		return ErrInvalidRequest
	}
	return nil
}

func (r DispatchRequest) validate() error {
	if r.RoomName == "" || r.AgentName == "" {
		return ErrInvalidRequest
	}
	return nil
}

// CampaignRoomName names the room for one campaign call.
func CampaignRoomName(campaignID, callID string) string {
	return "campaign-" + campaignID + "-" + callID
}

// AssistantRoomName names the room for a manual assistant call.
func AssistantRoomName(callID string) string {
	return "outbound-" + callID
}

// ParticipantIdentity is the SIP participant identity for a call.
func ParticipantIdentity(callID string) string {
	return "sip-" + callID
}
