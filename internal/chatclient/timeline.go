package chatclient

import (
	"Promo/internal/model"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

const DefaultPendingTimeout = 10 * time.Second

var (
	ErrUnknownEntry = errors.New("chatclient: unknown entry")
	ErrNotFailed    = errors.New("chatclient: entry is not failed")
)

// Entry is one rendered message of a conversation.
type Entry struct {
	TempID     string // empty for messages this client did not send
	ServerID   string // empty until confirmed
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Seen       bool
	Timestamp  time.Time
	Status     string

	sentAt time.Time
}

// Mine reports whether the entry was sent by selfID.
func (e Entry) Mine(selfID string) bool {
	return e.SenderID == selfID
}

type TimelineOption func(*Timeline)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) TimelineOption {
	return func(t *Timeline) { t.now = now }
}

// WithPendingTimeout bounds how long an optimistic entry may wait for its
// confirmation before it is marked failed.
func WithPendingTimeout(d time.Duration) TimelineOption {
	return func(t *Timeline) {
		if d > 0 {
			t.pendingTimeout = d
		}
	}
}

// Timeline is the ordered view of one conversation between selfID and peerID.
//
// Entries are kept in ascending timestamp order. Inserting runs a stable sort
// keyed by timestamp only, so entries with equal timestamps keep their arrival
// order. A confirmation rewrites the pending entry where it stands and never
// moves it.
type Timeline struct {
	selfID string
	peerID string

	mu             sync.Mutex
	entries        []Entry
	now            func() time.Time
	pendingTimeout time.Duration
}

func NewTimeline(selfID, peerID string, opts ...TimelineOption) *Timeline {
	t := &Timeline{
		selfID:         selfID,
		peerID:         peerID,
		now:            time.Now,
		pendingTimeout: DefaultPendingTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Timeline) PeerID() string { return t.peerID }

// AddPending renders an outbound message immediately under a fresh temp id.
func (t *Timeline) AddPending(text, image string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	e := Entry{
		TempID:     uuid.NewString(),
		SenderID:   t.selfID,
		ReceiverID: t.peerID,
		Text:       text,
		Image:      image,
		Timestamp:  now,
		Status:     StatusPending,
		sentAt:     now,
	}
	t.insertLocked(e)
	return e
}

// Confirm applies a send-confirmed event. A failed entry is upgraded too:
// the server stored the message even if the confirmation came late.
func (t *Timeline) Confirm(c model.SendConfirmed) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(func(e Entry) bool { return e.TempID != "" && e.TempID == c.ClientTempID })
	if i < 0 {
		if c.ServerID == "" || t.indexByServerLocked(c.ServerID) >= 0 {
			return false
		}
		e := entryFromView(c.Message)
		e.TempID = c.ClientTempID
		e.ServerID = c.ServerID
		if !t.belongsLocked(e) {
			return false
		}
		t.insertLocked(e)
		return true
	}
	if t.entries[i].Status == StatusConfirmed && t.entries[i].ServerID == c.ServerID {
		return false
	}

	// history may have seeded the same message before the confirmation
	if dup := t.indexByServerLocked(c.ServerID); dup >= 0 && dup != i {
		t.entries = slices.Delete(t.entries, dup, dup+1)
		if dup < i {
			i--
		}
	}

	e := &t.entries[i]
	e.ServerID = c.ServerID
	e.Timestamp = c.Timestamp
	e.Seen = e.Seen || c.Seen
	e.Status = StatusConfirmed
	return true
}

// Deliver applies a message-delivered event or any other server-side message.
// Duplicates by server id are ignored.
func (t *Timeline) Deliver(v model.MessageView) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mergeLocked(entryFromView(v))
}

// Seed merges a history page into the timeline.
func (t *Timeline) Seed(views []model.MessageView) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, v := range views {
		if t.mergeLocked(entryFromView(v)) {
			added++
		}
	}
	return added
}

// Fail marks a pending entry as failed after a delivery-error.
func (t *Timeline) Fail(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(func(e Entry) bool { return e.TempID == tempID })
	if i < 0 || t.entries[i].Status != StatusPending {
		return false
	}
	t.entries[i].Status = StatusFailed
	return true
}

// ExpirePending fails every pending entry older than the pending timeout and
// returns their temp ids. Nothing is resent.
func (t *Timeline) ExpirePending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []string
	for i := range t.entries {
		e := &t.entries[i]
		if e.Status == StatusPending && !now.Before(e.sentAt.Add(t.pendingTimeout)) {
			e.Status = StatusFailed
			expired = append(expired, e.TempID)
		}
	}
	return expired
}

// FailPending fails every pending entry regardless of age, for when the
// connection carrying their confirmations is gone.
func (t *Timeline) FailPending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var failed []string
	for i := range t.entries {
		e := &t.entries[i]
		if e.Status == StatusPending {
			e.Status = StatusFailed
			failed = append(failed, e.TempID)
		}
	}
	return failed
}

// Retry moves a failed entry back to pending and restarts its timeout. The
// caller resends it under the same temp id.
func (t *Timeline) Retry(tempID string) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(func(e Entry) bool { return e.TempID == tempID })
	if i < 0 {
		return Entry{}, ErrUnknownEntry
	}
	e := &t.entries[i]
	if e.Status != StatusFailed {
		return Entry{}, ErrNotFailed
	}
	e.Status = StatusPending
	e.sentAt = t.now()
	return *e, nil
}

// PeerSaw applies a seen-update from the peer: every confirmed message this
// client sent becomes seen.
func (t *Timeline) PeerSaw() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.Mine(t.selfID) && e.Status == StatusConfirmed && !e.Seen {
			e.Seen = true
			n++
		}
	}
	return n
}

// AcknowledgePeer flips the peer's unseen messages locally, mirroring a
// mark-seen sent to the server.
func (t *Timeline) AcknowledgePeer() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := range t.entries {
		e := &t.entries[i]
		if !e.Mine(t.selfID) && !e.Seen {
			e.Seen = true
			n++
		}
	}
	return n
}

// Unseen counts messages from the peer not yet acknowledged.
func (t *Timeline) Unseen() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if !e.Mine(t.selfID) && !e.Seen {
			n++
		}
	}
	return n
}

func (t *Timeline) Lookup(tempID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(func(e Entry) bool { return e.TempID == tempID })
	if i < 0 {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Entries returns a snapshot in render order.
func (t *Timeline) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.entries)
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Timeline) mergeLocked(e Entry) bool {
	if !t.belongsLocked(e) {
		return false
	}
	if e.ServerID != "" && t.indexByServerLocked(e.ServerID) >= 0 {
		return false
	}
	t.insertLocked(e)
	return true
}

func (t *Timeline) belongsLocked(e Entry) bool {
	return (e.SenderID == t.selfID && e.ReceiverID == t.peerID) ||
		(e.SenderID == t.peerID && e.ReceiverID == t.selfID)
}

func (t *Timeline) insertLocked(e Entry) {
	t.entries = append(t.entries, e)
	slices.SortStableFunc(t.entries, func(a, b Entry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}

func (t *Timeline) indexByServerLocked(id string) int {
	if id == "" {
		return -1
	}
	return t.indexLocked(func(e Entry) bool { return e.ServerID == id })
}

func (t *Timeline) indexLocked(match func(Entry) bool) int {
	return slices.IndexFunc(t.entries, match)
}

func entryFromView(v model.MessageView) Entry {
	return Entry{
		ServerID:   v.ID,
		SenderID:   v.Sender.ID,
		ReceiverID: v.Receiver.ID,
		Text:       v.Text,
		Image:      v.Image,
		Seen:       v.Seen,
		Timestamp:  v.Timestamp,
		Status:     StatusConfirmed,
	}
}
