package bus

import (
	"encoding/json"
	"testing"
)

func TestDecodeSkipsOwnMessages(t *testing.T) {
	raw, _ := json.Marshal(Message{Origin: "self", RoomID: "R1", Frame: []byte("x")})

	if _, ok := decode(raw, "self"); ok {
		t.Error("Messages from our own origin should be skipped")
	}

	m, ok := decode(raw, "other-instance")
	if !ok {
		t.Fatal("Messages from another origin should be delivered")
	}
	if m.RoomID != "R1" || string(m.Frame) != "x" {
		t.Errorf("Unexpected message: %+v", m)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, ok := decode([]byte("not json"), "self"); ok {
		t.Error("Garbage payloads should be skipped")
	}
	if _, ok := decode([]byte(`{"origin":"a"}`), "self"); ok {
		t.Error("Payloads without a room id should be skipped")
	}
}

func TestChannelNamespacing(t *testing.T) {
	if channel("R1") != "room:R1" {
		t.Errorf("Unexpected channel name: %s", channel("R1"))
	}
	if channel("*") != "room:*" {
		t.Errorf("Unexpected wildcard channel: %s", channel("*"))
	}
}
