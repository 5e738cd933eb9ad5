package registry

import (
	"sync"
)

// SessionRegistry is the online-presence index: it maps a user id to the set
// of live connection ids belonging to that user. A user with multiple tabs
// or devices has multiple entries; an absent user is simply offline.
//
// All operations are total: unknown ids yield empty results, never errors.
type SessionRegistry struct {
	mu    sync.RWMutex
	users map[string]map[string]struct{}
	conns map[string]string
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		users: make(map[string]map[string]struct{}),
		conns: make(map[string]string),
	}
}

// Register adds connId under userId. Registering the same connection twice
// is a no-op; registering it under a different user moves it, so a
// connection id lives under at most one user at a time.
func (r *SessionRegistry) Register(userId, connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[connId]; ok {
		if prev == userId {
			return
		}
		r.remove(prev, connId)
	}

	if r.users[userId] == nil {
		r.users[userId] = make(map[string]struct{})
	}
	r.users[userId][connId] = struct{}{}
	r.conns[connId] = userId
}

// Unregister removes connId from whichever user it was registered under.
// Unknown connection ids are a no-op.
func (r *SessionRegistry) Unregister(connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId, ok := r.conns[connId]
	if !ok {
		return
	}
	r.remove(userId, connId)
}

func (r *SessionRegistry) remove(userId, connId string) {
	delete(r.conns, connId)
	if set, ok := r.users[userId]; ok {
		delete(set, connId)
		if len(set) == 0 {
			delete(r.users, userId)
		}
	}
}

// ConnectionsFor returns the live connection ids for userId, possibly empty.
func (r *SessionRegistry) ConnectionsFor(userId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userId]
	conns := make([]string, 0, len(set))
	for connId := range set {
		conns = append(conns, connId)
	}
	return conns
}

func (r *SessionRegistry) IsOnline(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userId]) > 0
}
