package hub

import (
	"sort"
	"sync"
)

// TypingTracker holds, per conversation pair, the users currently typing
// toward the other party. State is ephemeral and never persisted.
type TypingTracker struct {
	mu     sync.Mutex
	active map[PairKey]map[string]struct{}
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		active: make(map[PairKey]map[string]struct{}),
	}
}

// Start marks from as typing toward to. It reports whether from was not
// already typing in that pair.
func (t *TypingTracker) Start(from, to string) bool {
	key := NewPairKey(from, to)

	t.mu.Lock()
	defer t.mu.Unlock()

	typers, ok := t.active[key]
	if !ok {
		typers = make(map[string]struct{}, 2)
		t.active[key] = typers
	}
	if _, already := typers[from]; already {
		return false
	}
	typers[from] = struct{}{}
	return true
}

// Stop clears from's typing flag in the pair. It reports whether a flag was
// actually removed; a stop without a start is a no-op.
func (t *TypingTracker) Stop(from, to string) bool {
	key := NewPairKey(from, to)

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.removeLocked(key, from)
}

// Clear drops every entry where userID is the active typer and returns the
// peers of those pairs, each at most once, sorted.
func (t *TypingTracker) Clear(userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var peers []string
	for key := range t.active {
		peer, ok := key.Other(userID)
		if !ok {
			continue
		}
		if t.removeLocked(key, userID) {
			peers = append(peers, peer)
		}
	}
	sort.Strings(peers)
	return peers
}

// IsTyping reports whether from is typing toward to.
func (t *TypingTracker) IsTyping(from, to string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.active[NewPairKey(from, to)][from]
	return ok
}

// Stats returns the number of pairs with at least one typer and the total
// number of typers.
func (t *TypingTracker) Stats() (pairs, typers int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, set := range t.active {
		pairs++
		typers += len(set)
	}
	return pairs, typers
}

func (t *TypingTracker) removeLocked(key PairKey, userID string) bool {
	typers, ok := t.active[key]
	if !ok {
		return false
	}
	if _, ok := typers[userID]; !ok {
		return false
	}
	delete(typers, userID)
	if len(typers) == 0 {
		delete(t.active, key)
	}
	return true
}
