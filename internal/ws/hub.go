// Package ws is the connection gateway and broadcast router: it owns the
// websocket clients, runs the single dispatch loop that mutates room state,
// and fans events out to room members.
package ws

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rishabh-28-shubham/TechStroke/internal/bus"
	"github.com/rishabh-28-shubham/TechStroke/internal/exec"
	"github.com/rishabh-28-shubham/TechStroke/internal/metrics"
	"github.com/rishabh-28-shubham/TechStroke/internal/protocol"
	"github.com/rishabh-28-shubham/TechStroke/internal/room"
)

// Hub coordinates all connected clients. Every state transition runs on
// the single Run goroutine, so events are handled to completion in arrival
// order and room state needs no cross-handler coordination. The only
// suspension point is the sandbox call, which runs off-loop and re-enters
// through execResults to commit.
type Hub struct {
	log      *slog.Logger
	registry *room.Registry
	exec     *exec.Client
	bus      *bus.Bus // nil when cross-instance fan-out is disabled

	register    chan *Client
	unregister  chan *Client
	inbound     chan *inboundEvent
	execResults chan *execResult
	remote      chan remoteFrame

	ctx context.Context

	// mu guards clients and rooms: written only by the Run loop, read by
	// the HTTP stats handlers.
	mu      sync.RWMutex
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

type inboundEvent struct {
	client *Client
	event  *protocol.Inbound
}

type execResult struct {
	roomID    string
	requester *Client
	payload   protocol.ExecutionResultPayload
	failed    bool
}

type remoteFrame struct {
	roomID string
	frame  []byte
}

// NewHub builds a hub. execClient may not be nil; b may be.
func NewHub(log *slog.Logger, registry *room.Registry, execClient *exec.Client, b *bus.Bus) *Hub {
	return &Hub{
		log:         log,
		registry:    registry,
		exec:        execClient,
		bus:         b,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		inbound:     make(chan *inboundEvent, 256),
		execResults: make(chan *execResult, 16),
		remote:      make(chan remoteFrame, 256),
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
	}
}

// Run is the dispatch loop. It exits when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx

	if h.bus != nil {
		go h.bus.Subscribe(ctx, func(roomID string, frame []byte) {
			select {
			case h.remote <- remoteFrame{roomID: roomID, frame: frame}:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.ActiveConnections.Inc()
			h.log.Debug("client connected", "conn", client.id)

		case client := <-h.unregister:
			h.disconnect(client)

		case in := <-h.inbound:
			h.dispatch(in.client, in.event)

		case res := <-h.execResults:
			h.commitExecution(res)

		case rf := <-h.remote:
			h.broadcastToRoom(rf.roomID, rf.frame, nil, false)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) dispatch(c *Client, in *protocol.Inbound) {
	metrics.EventsTotal.WithLabelValues(string(in.Type)).Inc()

	switch in.Type {
	case protocol.EventJoin:
		h.handleJoin(c, in.Join)
	case protocol.EventLeave:
		h.handleLeave(c)
	case protocol.EventContentChange:
		h.handleContentChange(c, in.ContentChange)
	case protocol.EventTyping:
		h.handleTyping(c, in.Typing)
	case protocol.EventChat:
		h.handleChat(c, in.Chat)
	case protocol.EventExecute:
		h.handleExecute(c, in.Execute)
	}
}

// handleJoin binds a connection to a room, leaving its previous room
// first. The joiner gets the membership broadcast like everyone else,
// plus a unicast snapshot so late joiners catch up on current state.
func (h *Hub) handleJoin(c *Client, p *protocol.JoinPayload) {
	if c.roomID != "" && c.roomID != p.RoomID {
		h.leaveRoom(c)
	}

	rm, created := h.registry.GetOrCreate(p.RoomID, p.Kind)
	if created {
		h.log.Info("room created", "room", p.RoomID, "kind", rm.Kind)
	}

	c.roomID = p.RoomID
	c.name = p.DisplayName
	rm.AddMember(c.id, p.DisplayName)

	h.mu.Lock()
	if _, ok := h.rooms[p.RoomID]; !ok {
		h.rooms[p.RoomID] = make(map[*Client]bool)
	}
	h.rooms[p.RoomID][c] = true
	h.mu.Unlock()

	h.log.Info("client joined", "conn", c.id, "room", p.RoomID, "name", p.DisplayName)

	h.broadcastMembership(rm)
	h.sendEvent(c, protocol.EventRoomSnapshot, rm.Snapshot())
}

// handleLeave unbinds a connection from its room. Safe to call when the
// connection never joined anything.
func (h *Hub) handleLeave(c *Client) {
	h.leaveRoom(c)
}

func (h *Hub) leaveRoom(c *Client) {
	if c.roomID == "" {
		return
	}
	roomID := c.roomID
	c.roomID = ""
	c.name = ""

	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	rm, ok := h.registry.Get(roomID)
	if !ok {
		return
	}
	if rm.RemoveMember(c.id) {
		h.log.Info("client left", "conn", c.id, "room", roomID)
		h.broadcastMembership(rm)
	}
}

// disconnect is the transport-initiated leave. Idempotent: a client that
// was already torn down (for example as a slow consumer) is skipped.
func (h *Hub) disconnect(c *Client) {
	h.mu.RLock()
	known := h.clients[c]
	h.mu.RUnlock()
	if !known {
		return
	}

	h.leaveRoom(c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()

	close(c.send)
	metrics.ActiveConnections.Dec()
	h.log.Debug("client disconnected", "conn", c.id)
}

// handleContentChange applies a last-write-wins field overwrite and relays
// it to the other members. Unknown rooms and malformed values are dropped.
func (h *Hub) handleContentChange(c *Client, p *protocol.ContentChangePayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		return
	}
	if err := rm.ApplyChange(p.Field, p.Value); err != nil {
		metrics.DroppedFramesTotal.Inc()
		h.log.Warn("content-change dropped", "conn", c.id, "room", p.RoomID, "err", err)
		return
	}

	h.broadcastEvent(p.RoomID, protocol.EventContentUpdated, protocol.ContentUpdatedPayload{
		Field:  p.Field,
		Value:  p.Value,
		ByName: c.name,
	}, c)
}

// handleTyping forwards the typing signal as-is: no debounce, no expiry.
func (h *Hub) handleTyping(c *Client, p *protocol.TypingPayload) {
	rm, ok := h.registry.Get(p.RoomID)
	if !ok {
		return
	}
	rm.SetTyping(p.DisplayName)

	h.broadcastEvent(p.RoomID, protocol.EventUserTyping, protocol.UserTypingPayload{
		DisplayName: p.DisplayName,
	}, c)
}

// handleChat relays a message to the other members. No history is kept
// and none is replayed on join.
func (h *Hub) handleChat(c *Client, p *protocol.ChatPayload) {
	if _, ok := h.registry.Get(p.RoomID); !ok {
		return
	}

	h.broadcastEvent(p.RoomID, protocol.EventChatMessage, protocol.ChatMessagePayload{
		Text:   p.Text,
		ByName: c.name,
	}, c)
}

// handleExecute dispatches a sandbox run off the loop. The result comes
// back through execResults so no room state is held across the call.
func (h *Hub) handleExecute(c *Client, p *protocol.ExecutePayload) {
	if _, ok := h.registry.Get(p.RoomID); !ok {
		h.log.Debug("execute for unknown room dropped", "room", p.RoomID)
		return
	}

	req := exec.Request{Code: p.Code, Language: p.Language, Version: p.Version}
	roomID := p.RoomID

	go func() {
		result, err := h.exec.Execute(h.ctx, req)

		res := &execResult{roomID: roomID, requester: c}
		if err != nil {
			metrics.ExecutionsTotal.WithLabelValues("error").Inc()
			res.failed = true
			res.payload = protocol.ExecutionResultPayload{Error: err.Error()}
		} else {
			metrics.ExecutionsTotal.WithLabelValues("ok").Inc()
			res.payload = protocol.ExecutionResultPayload{
				Output: result.Run.Output,
				Raw:    result.Raw,
			}
		}

		select {
		case h.execResults <- res:
		case <-h.ctx.Done():
		}
	}()
}

// commitExecution re-acquires room state after the sandbox call resolves.
// Failures go to the requester only; successes update the room and reach
// every member, requester included. A room with zero members left is a
// no-op delivery, not an error.
func (h *Hub) commitExecution(res *execResult) {
	if res.failed {
		h.mu.RLock()
		connected := h.clients[res.requester]
		h.mu.RUnlock()
		if connected {
			h.sendEvent(res.requester, protocol.EventExecutionResult, res.payload)
		}
		return
	}

	rm, ok := h.registry.Get(res.roomID)
	if !ok {
		return
	}
	rm.SetExecutionOutput(res.payload.Output)

	h.broadcastEvent(res.roomID, protocol.EventExecutionResult, res.payload, nil)
}

func (h *Hub) broadcastMembership(rm *room.Room) {
	h.broadcastEvent(rm.ID, protocol.EventMembershipChanged, protocol.MembershipChangedPayload{
		Members: rm.MemberNames(),
	}, nil)
}

// broadcastEvent encodes an event and delivers it to the room's members,
// minus exclude when set.
func (h *Hub) broadcastEvent(roomID string, event protocol.EventType, payload any, exclude *Client) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.log.Error("encode failed", "event", event, "err", err)
		return
	}
	h.broadcastToRoom(roomID, frame, exclude, true)
}

func (h *Hub) broadcastToRoom(roomID string, frame []byte, exclude *Client, publish bool) {
	if publish && h.bus != nil {
		if err := h.bus.Publish(h.ctx, roomID, frame); err != nil {
			h.log.Warn("bus publish failed", "room", roomID, "err", err)
		}
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != exclude {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		h.deliver(c, frame)
	}
}

func (h *Hub) sendEvent(c *Client, event protocol.EventType, payload any) {
	frame, err := protocol.Encode(event, payload)
	if err != nil {
		h.log.Error("encode failed", "event", event, "err", err)
		return
	}
	h.deliver(c, frame)
}

// deliver queues a frame without blocking the loop. A client whose send
// buffer is full is treated as dead and torn down.
func (h *Hub) deliver(c *Client, frame []byte) {
	select {
	case c.send <- frame:
		metrics.BroadcastsTotal.Inc()
	default:
		h.log.Warn("slow client dropped", "conn", c.id, "room", c.roomID)
		h.disconnect(c)
	}
}

// Stats accessors, used by the HTTP API.

// GetRoomCount returns the number of rooms with at least one connection.
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// GetClientCount returns the number of open connections.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetActiveRooms returns connection counts per room with members.
func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active := make(map[string]int, len(h.rooms))
	for id, members := range h.rooms {
		active[id] = len(members)
	}
	return active
}
