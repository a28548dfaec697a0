package protocol

import (
	"encoding/json"
	"testing"
)

func TestValidator_Samples(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	good := []struct {
		name string
		fn   func([]byte) error
		raw  string
	}{
		{"hello minimal", v.ValidateHello, `{"type":"HELLO","protocol_version":"1.0"}`},
		{"hello full", v.ValidateHello, `{"type":"HELLO","protocol_version":"1.0","name":"bot","profile_id":3,"encoding":"cbor","max_queue":8,"locale":"pt-BR","auth":{"token":"t"}}`},
		{"act set", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"SET_CONSENT","topic":"ConsentHugs","level":2}]}`},
		{"act view", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"VIEW_CONSENT_REQ","target_id":"E000002"}]}`},
		{"act verb", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"USE_VERB","target_id":"E2","verb":"examine-view-consent"},{"id":"I2","type":"MOVE","dx":1}]}`},
	}
	for _, tc := range good {
		if err := tc.fn([]byte(tc.raw)); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
	}

	bad := []struct {
		name string
		fn   func([]byte) error
		raw  string
	}{
		{"hello wrong type", v.ValidateHello, `{"type":"ACT","protocol_version":"1.0"}`},
		{"hello bad encoding", v.ValidateHello, `{"type":"HELLO","protocol_version":"1.0","encoding":"xml"}`},
		{"hello negative profile", v.ValidateHello, `{"type":"HELLO","protocol_version":"1.0","profile_id":-1}`},
		{"act missing instants", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0"}`},
		{"act unknown instant", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"DANCE"}]}`},
		{"set without level", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"SET_CONSENT","topic":"A"}]}`},
		{"view without target", v.ValidateAct, `{"type":"ACT","protocol_version":"1.0","instants":[{"id":"I1","type":"VIEW_CONSENT_REQ"}]}`},
		{"not json", v.ValidateAct, `{`},
	}
	for _, tc := range bad {
		if err := tc.fn([]byte(tc.raw)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestCBORFramesValidateAsJSON(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	level := 2
	act := ActMsg{
		Type:            TypeAct,
		ProtocolVersion: Version,
		Instants:        []InstantReq{{ID: "I1", Type: InstantSetConsent, Topic: "ConsentHugs", Level: &level}},
	}
	raw, err := Marshal(EncodingCBOR, act)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	js, err := CBORToJSON(raw)
	if err != nil {
		t.Fatalf("cbor->json: %v", err)
	}
	if err := v.ValidateAct(js); err != nil {
		t.Fatalf("validate: %v", err)
	}
	var back ActMsg
	if err := json.Unmarshal(js, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Instants) != 1 || back.Instants[0].Level == nil || *back.Instants[0].Level != 2 {
		t.Fatalf("instants=%+v", back.Instants)
	}
	if _, err := Marshal("xml", act); err == nil {
		t.Fatalf("unknown encoding accepted")
	}
}
