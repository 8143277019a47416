package telephony

import "encoding/json"

// CallMetadata is the context a voice agent needs for one call. It is either
// a CampaignCall or an AssistantCall and is serialized to JSON only when it
// crosses the SIP or dispatch boundary.
//
// The agent tells campaign calls from assistant calls by the presence of
// campaignId in the dispatch payload; field names are part of that contract.
type CallMetadata interface {
	participantPayload() participantPayload
	dispatchPayload() dispatchPayload
}

// CampaignCall is the metadata of a call placed by the campaign engine.
type CampaignCall struct {
	AgentID      string
	CallID       string
	CampaignID   string
	ContactName  string
	ContactPhone string
	// Prompt is the campaign script already interpolated for this contact.
	Prompt  string
	TrunkID string
}

// AssistantCall is the metadata of a manual call placed for one assistant.
type AssistantCall struct {
	AgentID      string
	CallID       string
	ContactName  string
	ContactPhone string
	TrunkID      string
}

type participantPayload struct {
	AgentID        string `json:"agentId"`
	CallType       string `json:"callType"`
	CallID         string `json:"callId"`
	ContactName    string `json:"contactName,omitempty"`
	CampaignPrompt string `json:"campaignPrompt,omitempty"`
	Source         string `json:"source"`
}

type dispatchPayload struct {
	PhoneNumber     string `json:"phone_number"`
	AgentID         string `json:"agentId"`
	CampaignID      string `json:"campaignId,omitempty"`
	ContactName     string `json:"contactName,omitempty"`
	CampaignPrompt  string `json:"campaignPrompt,omitempty"`
	OutboundTrunkID string `json:"outboundTrunkId"`
}

const callTypeOutbound = "outbound"

func (m CampaignCall) participantPayload() participantPayload {
	return participantPayload{
		AgentID:        m.AgentID,
		CallType:       callTypeOutbound,
		CallID:         m.CallID,
		ContactName:    m.ContactName,
		CampaignPrompt: m.Prompt,
		Source:         "campaign",
	}
}

func (m CampaignCall) dispatchPayload() dispatchPayload {
	return dispatchPayload{
		PhoneNumber:     m.ContactPhone,
		AgentID:         m.AgentID,
		CampaignID:      m.CampaignID,
		ContactName:     m.ContactName,
		CampaignPrompt:  m.Prompt,
		OutboundTrunkID: m.TrunkID,
	}
}

func (m AssistantCall) participantPayload() participantPayload {
	return participantPayload{
		AgentID:     m.AgentID,
		CallType:    callTypeOutbound,
		CallID:      m.CallID,
		ContactName: m.ContactName,
		Source:      "assistant",
	}
}

func (m AssistantCall) dispatchPayload() dispatchPayload {
	return dispatchPayload{
		PhoneNumber:     m.ContactPhone,
		AgentID:         m.AgentID,
		ContactName:     m.ContactName,
		OutboundTrunkID: m.TrunkID,
	}
}

// ParticipantMetadata encodes the payload attached to the SIP participant.
func ParticipantMetadata(m CallMetadata) (string, error) {
	b, err := json.Marshal(m.participantPayload())
	return string(b), err
}

// DispatchMetadata encodes the payload attached to the agent dispatch.
func DispatchMetadata(m CallMetadata) (string, error) {
	b, err := json.Marshal(m.dispatchPayload())
	return string(b), err
}
