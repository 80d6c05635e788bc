package hub

import (
	"Promo/internal/model"
	"sync"
)

const defaultDedupeSize = 4096

// sentIndex remembers the stored view of recent sends by sender and client
// temp id, so a resend of an already stored message is confirmed again
// instead of being stored twice. The oldest keys are evicted first.
type sentIndex struct {
	mu    sync.Mutex
	max   int
	views map[sentKey]model.MessageView
	order []sentKey // ring of keys in insertion order
	next  int
}

type sentKey struct {
	senderID     string
	clientTempID string
}

func newSentIndex(max int) *sentIndex {
	if max <= 0 {
		max = defaultDedupeSize
	}
	return &sentIndex{
		max:   max,
		views: make(map[sentKey]model.MessageView, max),
		order: make([]sentKey, 0, max),
	}
}

func (s *sentIndex) lookup(senderID, clientTempID string) (model.MessageView, bool) {
	if clientTempID == "" {
		return model.MessageView{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[sentKey{senderID, clientTempID}]
	return v, ok
}

func (s *sentIndex) record(senderID, clientTempID string, v model.MessageView) {
	if clientTempID == "" {
		return
	}
	k := sentKey{senderID, clientTempID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.views[k]; ok {
		s.views[k] = v
		return
	}
	if len(s.order) < s.max {
		s.order = append(s.order, k)
	} else {
		delete(s.views, s.order[s.next])
		s.order[s.next] = k
		s.next = (s.next + 1) % s.max
	}
	s.views[k] = v
}

func (s *sentIndex) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}
