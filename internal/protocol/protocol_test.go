package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeJoin(t *testing.T) {
	raw := []byte(`{"event":"join","data":{"roomId":"R1","displayName":"Alice"}}`)

	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Type != EventJoin {
		t.Errorf("Expected join event, got %q", in.Type)
	}
	if in.Join == nil {
		t.Fatal("Join payload should be set")
	}
	if in.Join.RoomID != "R1" || in.Join.DisplayName != "Alice" {
		t.Errorf("Unexpected payload: %+v", in.Join)
	}
	if in.Join.Kind != KindCode {
		t.Errorf("Expected default kind %q, got %q", KindCode, in.Join.Kind)
	}
}

func TestDecodeJoinDocKind(t *testing.T) {
	raw := []byte(`{"event":"join","data":{"roomId":"R1","displayName":"Alice","kind":"doc"}}`)

	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Join.Kind != KindDoc {
		t.Errorf("Expected doc kind, got %q", in.Join.Kind)
	}
}

func TestDecodeLeave(t *testing.T) {
	in, err := Decode([]byte(`{"event":"leave"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Type != EventLeave {
		t.Errorf("Expected leave event, got %q", in.Type)
	}
}

func TestDecodeContentChange(t *testing.T) {
	raw := []byte(`{"event":"content-change","data":{"roomId":"R1","field":"code","value":"print(1)"}}`)

	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.ContentChange == nil {
		t.Fatal("ContentChange payload should be set")
	}
	if in.ContentChange.Field != FieldCode {
		t.Errorf("Expected field 'code', got %q", in.ContentChange.Field)
	}

	var code string
	if err := json.Unmarshal(in.ContentChange.Value, &code); err != nil {
		t.Fatalf("Value should be a JSON string: %v", err)
	}
	if code != "print(1)" {
		t.Errorf("Expected 'print(1)', got %q", code)
	}
}

func TestDecodeExecute(t *testing.T) {
	raw := []byte(`{"event":"execute","data":{"roomId":"R1","code":"1+1","language":"python","version":"*"}}`)

	in, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if in.Execute == nil {
		t.Fatal("Execute payload should be set")
	}
	if in.Execute.Language != "python" || in.Execute.Version != "*" {
		t.Errorf("Unexpected payload: %+v", in.Execute)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"unknown event", `{"event":"self-destruct","data":{}}`},
		{"join without room", `{"event":"join","data":{"displayName":"Alice"}}`},
		{"join without name", `{"event":"join","data":{"roomId":"R1"}}`},
		{"join bad kind", `{"event":"join","data":{"roomId":"R1","displayName":"A","kind":"video"}}`},
		{"content-change without field", `{"event":"content-change","data":{"roomId":"R1"}}`},
		{"typing without name", `{"event":"typing","data":{"roomId":"R1"}}`},
		{"chat without room", `{"event":"chat","data":{"text":"hi"}}`},
		{"execute without language", `{"event":"execute","data":{"roomId":"R1","code":"x"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.raw)); err == nil {
				t.Errorf("Expected error for %s", tc.raw)
			}
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	raw, err := Encode(EventMembershipChanged, MembershipChangedPayload{Members: []string{"Alice", "Bob"}})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("Envelope should be valid JSON: %v", err)
	}
	if env.Event != EventMembershipChanged {
		t.Errorf("Expected membership-changed, got %q", env.Event)
	}

	var p MembershipChangedPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("Payload should decode: %v", err)
	}
	if len(p.Members) != 2 || p.Members[0] != "Alice" {
		t.Errorf("Unexpected members: %v", p.Members)
	}
}
