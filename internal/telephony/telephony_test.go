package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("invalid json %q: %v", s, err)
	}
	return m
}

func TestCampaignMetadata(t *testing.T) {
	m := CampaignCall{
		AgentID: "a1", CallID: "k1", CampaignID: "c1", ContactName: "Ana",
		ContactPhone: "+15550001", Prompt: "Hi Ana", TrunkID: "ST_1",
	}

	p, err := ParticipantMetadata(m)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := decode(t, p)
	want := map[string]any{
		"agentId": "a1", "callType": "outbound", "callId": "k1",
		"contactName": "Ana", "campaignPrompt": "Hi Ana", "source": "campaign",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("participant %s: got %v want %v", k, got[k], v)
		}
	}

	d, err := DispatchMetadata(m)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got = decode(t, d)
	want = map[string]any{
		"phone_number": "+15550001", "agentId": "a1", "campaignId": "c1",
		"contactName": "Ana", "campaignPrompt": "Hi Ana", "outboundTrunkId": "ST_1",
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected dispatch keys: %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("dispatch %s: got %v want %v", k, got[k], v)
		}
	}
}

func TestAssistantMetadataHasNoCampaign(t *testing.T) {
	d, err := DispatchMetadata(AssistantCall{AgentID: "a1", CallID: "k1", ContactPhone: "+15550001", TrunkID: "ST_1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := decode(t, d)
	if _, ok := got["campaignId"]; ok {
		t.Fatalf("assistant dispatch must not carry campaignId: %v", got)
	}
	p, _ := ParticipantMetadata(AssistantCall{AgentID: "a1", CallID: "k1"})
	if decode(t, p)["source"] != "assistant" {
		t.Fatalf("unexpected participant payload %s", p)
	}
}

func TestLiveKitRequestBuilders(t *testing.T) {
	req := DialRequest{
		TrunkID: "ST_1", PhoneNumber: "+15550001", RoomName: CampaignRoomName("c1", "k1"),
		ParticipantIdentity: ParticipantIdentity("k1"), ParticipantName: "Ana", Metadata: "{}",
	}
	sip := sipParticipantRequest(req, true)
	if sip.GetSipTrunkId() != "ST_1" || sip.GetSipCallTo() != "+15550001" || sip.GetRoomName() != "campaign-c1-k1" {
		t.Fatalf("unexpected sip request: %+v", sip)
	}
	if sip.GetParticipantIdentity() != "sip-k1" || !sip.GetWaitUntilAnswered() || sip.GetParticipantMetadata() != "{}" {
		t.Fatalf("unexpected sip request: %+v", sip)
	}

	d := agentDispatchRequest(DispatchRequest{RoomName: "r", AgentName: "voice-agent", Metadata: "{}"})
	if d.GetRoom() != "r" || d.GetAgentName() != "voice-agent" || d.GetMetadata() != "{}" {
		t.Fatalf("unexpected dispatch request: %+v", d)
	}
}

func TestRequestValidation(t *testing.T) {
	if err := (DialRequest{PhoneNumber: "+1", RoomName: "r", ParticipantIdentity: "p"}).validate(); !errors.Is(err, ErrNoOutboundTrunk) {
		t.Fatalf("expected ErrNoOutboundTrunk, got %v", err)
	}
	if err := (DialRequest{TrunkID: "t", RoomName: "r", ParticipantIdentity: "p"}).validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if err := (DispatchRequest{RoomName: "r"}).validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMemoryTrunks(t *testing.T) {
	m := NewMemoryTrunks()
	m.Put(Trunk{AssistantID: "a1", PhoneNumber: "+15550009", OutboundTrunkID: "ST_1"})

	tr, err := m.ResolveTrunk(context.Background(), "a1")
	if err != nil || tr.OutboundTrunkID != "ST_1" {
		t.Fatalf("unexpected trunk %+v %v", tr, err)
	}
	tr, err = m.ResolveTrunk(context.Background(), "a2")
	if err != nil || tr.OutboundTrunkID != "" {
		t.Fatalf("missing trunk should resolve empty: %+v %v", tr, err)
	}
	m.Err = errors.New("db down")
	if _, err := m.ResolveTrunk(context.Background(), "a1"); err == nil {
		t.Fatalf("expected error")
	}
}
