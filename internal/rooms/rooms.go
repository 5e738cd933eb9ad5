package rooms

import (
	"strings"
	"sync"
)

// Kind is the broadcast-group flavor encoded in a room name.
type Kind string

const (
	KindUser        Kind = "user"
	KindProperty    Kind = "property"
	KindMaintenance Kind = "maintenance"
)

// Room names follow the convention shared with clients: "user:{id}",
// "property:{id}", "maintenance:{id}".

func UserRoom(userId string) string {
	return string(KindUser) + ":" + userId
}

func PropertyRoom(propertyId string) string {
	return string(KindProperty) + ":" + propertyId
}

func MaintenanceRoom(requestId string) string {
	return string(KindMaintenance) + ":" + requestId
}

// Parse splits a room name into its kind and identity. It reports false for
// names outside the convention.
func Parse(name string) (Kind, string, bool) {
	kind, id, ok := strings.Cut(name, ":")
	if !ok || id == "" {
		return "", "", false
	}

	switch Kind(kind) {
	case KindUser, KindProperty, KindMaintenance:
		return Kind(kind), id, true
	}
	return "", "", false
}

// Roster is a pure membership index mapping room names to the connection ids
// currently joined. It enforces no policy; authorization happens before Join
// is called. Membership is connection-scoped and ephemeral: nothing survives
// a disconnect, and a room with no members is dropped.
type Roster struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
	joined  map[string]map[string]struct{}
}

func NewRoster() *Roster {
	return &Roster{
		members: make(map[string]map[string]struct{}),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join adds connId to room. Joining a room twice is a no-op.
func (r *Roster) Join(connId, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.members[room] == nil {
		r.members[room] = make(map[string]struct{})
	}
	r.members[room][connId] = struct{}{}

	if r.joined[connId] == nil {
		r.joined[connId] = make(map[string]struct{})
	}
	r.joined[connId][room] = struct{}{}
}

// Leave removes connId from room. Unknown pairs are a no-op.
func (r *Roster) Leave(connId, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leave(connId, room)
}

func (r *Roster) leave(connId, room string) {
	if set, ok := r.members[room]; ok {
		delete(set, connId)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if set, ok := r.joined[connId]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, connId)
		}
	}
}

// LeaveAll removes connId from every room it has joined, including the
// implicit personal-inbox room. Called once per disconnecting connection.
func (r *Roster) LeaveAll(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connId] {
		r.leave(connId, room)
	}
}

// MembersOf returns the connection ids currently in room, possibly empty.
func (r *Roster) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[room]
	conns := make([]string, 0, len(set))
	for connId := range set {
		conns = append(conns, connId)
	}
	return conns
}

// RoomsOf returns the rooms connId has joined, possibly empty.
func (r *Roster) RoomsOf(connId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.joined[connId]
	names := make([]string, 0, len(set))
	for room := range set {
		names = append(names, room)
	}
	return names
}
