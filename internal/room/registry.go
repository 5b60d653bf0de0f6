package room

import (
	"sync"

	"github.com/rishabh-28-shubham/TechStroke/internal/protocol"
)

// Registry is the process-wide room store, owned by whoever constructs it
// and passed to the handlers that need it. Rooms are created lazily on
// first join and live for the rest of the process; no eviction is exposed.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating an empty one with the
// given kind if absent. The second result reports whether it was created;
// the kind of an existing room is never changed.
func (reg *Registry) GetOrCreate(id string, kind protocol.RoomKind) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if rm, ok := reg.rooms[id]; ok {
		return rm, false
	}
	rm := New(id, kind)
	reg.rooms[id] = rm
	return rm, true
}

// Get returns the room for id, or false if it has never been joined.
func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rm, ok := reg.rooms[id]
	return rm, ok
}

// Count returns the number of rooms ever created in this process.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// ActiveRooms returns member connection counts for rooms that currently
// have at least one bound connection.
func (reg *Registry) ActiveRooms() map[string]int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	active := make(map[string]int)
	for id, rm := range reg.rooms {
		if n := rm.MemberCount(); n > 0 {
			active[id] = n
		}
	}
	return active
}

// Each calls fn for every room. Used by background workers that only read
// room snapshots.
func (reg *Registry) Each(fn func(*Room)) {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, rm := range reg.rooms {
		rooms = append(rooms, rm)
	}
	reg.mu.RUnlock()

	for _, rm := range rooms {
		fn(rm)
	}
}
