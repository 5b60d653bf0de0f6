// Package room owns the shared mutable state of a collaboration session:
// membership, content buffers, and the typing indicator. Rooms are mutated
// only through the hub's event handlers.
package room

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rishabh-28-shubham/TechStroke/internal/protocol"
)

// RepoFile is one entry of a fetched repository tree.
type RepoFile struct {
	Path string `json:"path"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// RepoSnapshot is the tree of fetched file metadata for a doc room.
type RepoSnapshot struct {
	URL   string     `json:"url"`
	Files []RepoFile `json:"files"`
}

// FilePreview is the most recently fetched file of a doc room.
type FilePreview struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Payload holds every mutable content field a room can carry. Which fields
// a client actually uses depends on the room kind; the coordinator applies
// last-write-wins on any of them without validation.
type Payload struct {
	Code                string        `json:"code,omitempty"`
	Language            string        `json:"language,omitempty"`
	LastExecutionOutput string        `json:"lastExecutionOutput,omitempty"`
	Content             string        `json:"content,omitempty"`
	RepoSnapshot        *RepoSnapshot `json:"repoSnapshot,omitempty"`
	SelectedPaths       []string      `json:"selectedPaths,omitempty"`
	PreviewedFile       *FilePreview  `json:"previewedFile,omitempty"`
}

// Snapshot is the full current state of a room, sent to late joiners.
type Snapshot struct {
	Members []string `json:"members"`
	Payload Payload  `json:"payload"`
	Typing  string   `json:"typing,omitempty"`
}

type member struct {
	connID string
	name   string
}

// Room is one collaboration session. Presence is keyed by connection id;
// the display name is an attribute, so two connections claiming the same
// name stay distinct internally and merge only in the broadcast name list.
type Room struct {
	ID   string
	Kind protocol.RoomKind

	mu      sync.RWMutex
	members []member
	payload Payload
	typing  string
}

// New creates an empty room.
func New(id string, kind protocol.RoomKind) *Room {
	return &Room{ID: id, Kind: kind}
}

// AddMember records a connection under its display name. Re-adding an
// already present connection updates the name in place.
func (r *Room) AddMember(connID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.members {
		if r.members[i].connID == connID {
			r.members[i].name = name
			return
		}
	}
	r.members = append(r.members, member{connID: connID, name: name})
}

// RemoveMember drops a connection from the room. Returns false if the
// connection was not a member, making repeated removal a no-op.
func (r *Room) RemoveMember(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.members {
		if r.members[i].connID == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// MemberNames returns the distinct display names in join order.
func (r *Room) MemberNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Room) namesLocked() []string {
	names := make([]string, 0, len(r.members))
	seen := make(map[string]bool, len(r.members))
	for _, m := range r.members {
		if !seen[m.name] {
			seen[m.name] = true
			names = append(names, m.name)
		}
	}
	return names
}

// MemberCount returns the number of bound connections (not distinct names).
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// ApplyChange overwrites one payload field with a JSON value, last write
// wins. Unknown fields and values of the wrong shape are rejected so the
// caller can drop the event as a protocol error.
func (r *Room) ApplyChange(field string, value json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch field {
	case protocol.FieldCode:
		return json.Unmarshal(value, &r.payload.Code)
	case protocol.FieldLanguage:
		return json.Unmarshal(value, &r.payload.Language)
	case protocol.FieldContent:
		return json.Unmarshal(value, &r.payload.Content)
	case protocol.FieldRepoSnapshot:
		var snap RepoSnapshot
		if err := json.Unmarshal(value, &snap); err != nil {
			return err
		}
		r.payload.RepoSnapshot = &snap
		return nil
	case protocol.FieldSelectedPaths:
		var paths []string
		if err := json.Unmarshal(value, &paths); err != nil {
			return err
		}
		r.payload.SelectedPaths = paths
		return nil
	case protocol.FieldPreviewedFile:
		var preview FilePreview
		if err := json.Unmarshal(value, &preview); err != nil {
			return err
		}
		r.payload.PreviewedFile = &preview
		return nil
	default:
		return fmt.Errorf("unknown content field %q", field)
	}
}

// SetExecutionOutput commits the last sandbox run output.
func (r *Room) SetExecutionOutput(output string) {
	r.mu.Lock()
	r.payload.LastExecutionOutput = output
	r.mu.Unlock()
}

// SetTyping records the display name currently flagged as typing. Expiry
// is a presentation concern of the clients.
func (r *Room) SetTyping(name string) {
	r.mu.Lock()
	r.typing = name
	r.mu.Unlock()
}

// Snapshot returns a consistent copy of members, payload and typing state.
func (r *Room) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	payload := r.payload
	if r.payload.RepoSnapshot != nil {
		snap := *r.payload.RepoSnapshot
		snap.Files = append([]RepoFile(nil), r.payload.RepoSnapshot.Files...)
		payload.RepoSnapshot = &snap
	}
	if r.payload.SelectedPaths != nil {
		payload.SelectedPaths = append([]string(nil), r.payload.SelectedPaths...)
	}
	if r.payload.PreviewedFile != nil {
		preview := *r.payload.PreviewedFile
		payload.PreviewedFile = &preview
	}

	return Snapshot{
		Members: r.namesLocked(),
		Payload: payload,
		Typing:  r.typing,
	}
}
