package hub

import (
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu        sync.Mutex
	messages  []model.Message
	insertErr error
	inserts   int
}

func (f *fakeStore) InsertMessage(_ context.Context, msg *model.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertErr != nil {
		return "", f.insertErr
	}
	msg.ID = primitive.NewObjectID()
	f.inserts++
	f.messages = append(f.messages, *msg)
	return msg.ID.Hex(), nil
}

func (f *fakeStore) MarkSeen(_ context.Context, senderID, receiverID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for i := range f.messages {
		m := &f.messages[i]
		if m.SenderID.Hex() == senderID && m.ReceiverID.Hex() == receiverID && !m.Seen {
			m.Seen = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) snapshot() []model.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Message(nil), f.messages...)
}

type fakeProfiles struct {
	profiles map[string]model.UserProjection
	err      error
}

func (f *fakeProfiles) GetProfiles(_ context.Context, ids ...string) (map[string]model.UserProjection, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]model.UserProjection)
	for _, id := range ids {
		if p, ok := f.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var errStoreDown = errors.New("store unavailable")

func newTestHub(t *testing.T, store *fakeStore, profiles *fakeProfiles) *Hub {
	t.Helper()
	if profiles == nil {
		profiles = &fakeProfiles{}
	}
	h := NewHub(Options{PushTimeout: 50 * time.Millisecond, SendTimeout: 100 * time.Millisecond}, store, profiles, zap.NewNop())
	t.Cleanup(h.Stop)
	return h
}

// newTestClient attaches a connection without a socket; events pushed to it
// stay in its egress buffer.
func newTestClient(h *Hub) *Client {
	c := newClient(nil, h)
	h.addClient(c)
	return c
}

func newUserID() string {
	return primitive.NewObjectID().Hex()
}

func mustEvent(t *testing.T, name string, payload any) event.WsEvent {
	t.Helper()
	ev, err := event.New(name, payload)
	require.NoError(t, err)
	return ev
}

func registerAs(t *testing.T, h *Hub, c *Client, userID string) {
	t.Helper()
	h.handleEvent(mustEvent(t, event.EventRegisterSession, model.RegisterSession{UserID: userID}), c)
	require.Equal(t, StateRegistered, c.State())
}

// expectEvent reads c's egress until an event called name shows up.
func expectEvent(t *testing.T, c *Client, name string) event.WsEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-c.egress:
			if ev.Event == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("client %s: no %s event", c.ID, name)
			return event.WsEvent{}
		}
	}
}

// countEvents drains c's egress for a short while and counts events called name.
func countEvents(c *Client, name string) int {
	n := 0
	quiet := time.After(100 * time.Millisecond)
	for {
		select {
		case ev := <-c.egress:
			if ev.Event == name {
				n++
			}
		case <-quiet:
			return n
		}
	}
}

func decodePayload[T any](t *testing.T, ev event.WsEvent) T {
	t.Helper()
	var v T
	require.NoError(t, ev.Decode(&v))
	return v
}
