package hub

import (
	"sort"
	"sync"
)

// PresenceSnapshot is the online-user set as of one registry mutation.
// Version increases with every change so late snapshots can be discarded.
type PresenceSnapshot struct {
	Version uint64
	UserIDs []string
}

// Registry maps a user identity to its single live connection.
// All access goes through mu; handler code never touches the maps.
type Registry struct {
	mu       sync.RWMutex
	byUser   map[string]*Client
	byHandle map[*Client]string
	version  uint64
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]*Client),
		byHandle: make(map[*Client]string),
	}
}

// Register binds userID to c, superseding any older connection of that user.
// If c was bound to a different user, that binding is released and the user
// is returned as released.
func (r *Registry) Register(userID string, c *Client) (snap PresenceSnapshot, released string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevUser, ok := r.byHandle[c]; ok && prevUser != userID {
		delete(r.byUser, prevUser)
		released = prevUser
	}
	if old, ok := r.byUser[userID]; ok && old != c {
		// superseded handle is not notified, it just stops resolving
		delete(r.byHandle, old)
	}

	r.byUser[userID] = c
	r.byHandle[c] = userID
	return r.snapshotLocked(), released
}

// Deregister removes the entry whose handle is c. A handle that was already
// superseded by a newer connection is a no-op and reports removed=false.
func (r *Registry) Deregister(c *Client) (snap PresenceSnapshot, userID string, removed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byHandle[c]
	if !ok {
		return PresenceSnapshot{}, "", false
	}
	delete(r.byHandle, c)
	if r.byUser[userID] == c {
		delete(r.byUser, userID)
	}
	return r.snapshotLocked(), userID, true
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// Online returns the sorted ids of every registered user.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userIDsLocked()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// must hold mu for writing
func (r *Registry) snapshotLocked() PresenceSnapshot {
	r.version++
	return PresenceSnapshot{Version: r.version, UserIDs: r.userIDsLocked()}
}

func (r *Registry) userIDsLocked() []string {
	ids := make([]string, 0, len(r.byUser))
	for id := range r.byUser {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
