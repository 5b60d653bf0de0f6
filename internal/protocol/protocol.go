// Package protocol defines the wire protocol between clients and the
// coordinator: a JSON envelope carrying one of a closed set of tagged
// event variants, with fixed required fields per variant.
package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType tags an envelope with the event it carries.
type EventType string

// Client-to-server events.
const (
	EventJoin          EventType = "join"
	EventLeave         EventType = "leave"
	EventContentChange EventType = "content-change"
	EventTyping        EventType = "typing"
	EventChat          EventType = "chat"
	EventExecute       EventType = "execute"
)

// Server-to-client events.
const (
	EventMembershipChanged EventType = "membership-changed"
	EventRoomSnapshot      EventType = "room-snapshot"
	EventContentUpdated    EventType = "content-updated"
	EventUserTyping        EventType = "user-typing"
	EventChatMessage       EventType = "chat-message"
	EventExecutionResult   EventType = "execution-result"
)

// RoomKind selects the payload shape a room carries.
type RoomKind string

const (
	KindCode RoomKind = "code"
	KindDoc  RoomKind = "doc"
)

// Field names a content-change event may target.
const (
	FieldCode          = "code"
	FieldLanguage      = "language"
	FieldContent       = "content"
	FieldRepoSnapshot  = "repoSnapshot"
	FieldSelectedPaths = "selectedPaths"
	FieldPreviewedFile = "previewedFile"
)

// Envelope is the outer wire frame for every event in both directions.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload binds a connection to a room under a display name. Kind is
// only honored on the join that creates the room; it defaults to "code".
type JoinPayload struct {
	RoomID      string   `json:"roomId"`
	DisplayName string   `json:"displayName"`
	Kind        RoomKind `json:"kind,omitempty"`
}

// ContentChangePayload overwrites one room payload field, last write wins.
type ContentChangePayload struct {
	RoomID string          `json:"roomId"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
}

// TypingPayload flags a member as currently typing.
type TypingPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

// ChatPayload carries one chat message.
type ChatPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// ExecutePayload requests a sandboxed run of the given code.
type ExecutePayload struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	Language string `json:"language"`
	Version  string `json:"version"`
}

// MembershipChangedPayload is the full replacement member list.
type MembershipChangedPayload struct {
	Members []string `json:"members"`
}

// ContentUpdatedPayload relays a field overwrite to other members.
type ContentUpdatedPayload struct {
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
	ByName string          `json:"byName"`
}

// UserTypingPayload relays a typing signal; expiry is a client concern.
type UserTypingPayload struct {
	DisplayName string `json:"displayName"`
}

// ChatMessagePayload relays a chat message to other members.
type ChatMessagePayload struct {
	Text   string `json:"text"`
	ByName string `json:"byName"`
}

// ExecutionResultPayload carries the sandbox output, or an error when the
// external call failed. Raw is the unmodified sandbox response body.
type ExecutionResultPayload struct {
	Output string          `json:"output"`
	Raw    json.RawMessage `json:"raw,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Inbound is a decoded client event. Exactly one payload pointer matching
// Type is non-nil.
type Inbound struct {
	Type          EventType
	Join          *JoinPayload
	ContentChange *ContentChangePayload
	Typing        *TypingPayload
	Chat          *ChatPayload
	Execute       *ExecutePayload
}

// Decode parses one wire frame into a validated inbound event. Unknown
// event names and payloads missing required fields are errors; callers
// drop the frame rather than closing the connection.
func Decode(raw []byte) (*Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}

	in := &Inbound{Type: env.Event}

	switch env.Event {
	case EventJoin:
		var p JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("join: %w", err)
		}
		if p.RoomID == "" || p.DisplayName == "" {
			return nil, fmt.Errorf("join: roomId and displayName are required")
		}
		switch p.Kind {
		case "":
			p.Kind = KindCode
		case KindCode, KindDoc:
		default:
			return nil, fmt.Errorf("join: unknown room kind %q", p.Kind)
		}
		in.Join = &p

	case EventLeave:
		// No payload; the bound room is implicit.

	case EventContentChange:
		var p ContentChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("content-change: %w", err)
		}
		if p.RoomID == "" || p.Field == "" {
			return nil, fmt.Errorf("content-change: roomId and field are required")
		}
		in.ContentChange = &p

	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("typing: %w", err)
		}
		if p.RoomID == "" || p.DisplayName == "" {
			return nil, fmt.Errorf("typing: roomId and displayName are required")
		}
		in.Typing = &p

	case EventChat:
		var p ChatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("chat: %w", err)
		}
		if p.RoomID == "" {
			return nil, fmt.Errorf("chat: roomId is required")
		}
		in.Chat = &p

	case EventExecute:
		var p ExecutePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("execute: %w", err)
		}
		if p.RoomID == "" || p.Language == "" {
			return nil, fmt.Errorf("execute: roomId and language are required")
		}
		in.Execute = &p

	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	return in, nil
}

// Encode wraps a server-to-client payload into a wire frame.
func Encode(event EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}
