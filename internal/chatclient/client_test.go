package chatclient

import (
	"Promo/internal/hub"
	"Promo/internal/model"
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memStore struct {
	mu       sync.Mutex
	messages []model.Message
}

func (m *memStore) InsertMessage(_ context.Context, msg *model.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	m.messages = append(m.messages, *msg)
	return msg.ID.Hex(), nil
}

func (m *memStore) MarkSeen(_ context.Context, senderID, receiverID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.SenderID.Hex() == senderID && msg.ReceiverID.Hex() == receiverID && !msg.Seen {
			msg.Seen = true
			n++
		}
	}
	return n, nil
}

type noProfiles struct{}

func (noProfiles) GetProfiles(context.Context, ...string) (map[string]model.UserProjection, error) {
	return nil, nil
}

func startHub(t *testing.T) string {
	t.Helper()
	h := hub.NewHub(hub.Options{}, &memStore{}, noProfiles{}, zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(func() {
		h.Stop()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, userID string, opts Options) *Client {
	t.Helper()
	c, err := Dial(t.Context(), url, userID, zap.NewNop(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitOnline(t *testing.T, c *Client, ids ...string) {
	t.Helper()
	require.Eventually(t, func() bool {
		online := c.Online()
		for _, id := range ids {
			if !slices.Contains(online, id) {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_SendRoundTrip(t *testing.T) {
	url := startHub(t)
	a := dial(t, url, alice, Options{})
	b := dial(t, url, bob, Options{})
	waitOnline(t, a, alice, bob)

	sent, err := a.Send(bob, "hi", "")
	require.NoError(t, err)
	require.Equal(t, StatusPending, sent.Status)

	var serverID string
	require.Eventually(t, func() bool {
		e, ok := a.Timeline(bob).Lookup(sent.TempID)
		serverID = e.ServerID
		return ok && e.Status == StatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, a.Timeline(bob).Len())

	require.Eventually(t, func() bool {
		return b.Timeline(alice).Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	got := b.Timeline(alice).Entries()[0]
	assert.Equal(t, serverID, got.ServerID)
	assert.Equal(t, "hi", got.Text)
	assert.False(t, got.Seen)

	require.NoError(t, b.MarkSeen(alice))
	assert.Zero(t, b.Timeline(alice).Unseen())

	require.Eventually(t, func() bool {
		e, _ := a.Timeline(bob).Lookup(sent.TempID)
		return e.Seen
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_DeliveryErrorFailsEntry(t *testing.T) {
	url := startHub(t)
	a := dial(t, url, alice, Options{})
	waitOnline(t, a, alice)

	sent, err := a.Send(bob, "   ", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		e, _ := a.Timeline(bob).Lookup(sent.TempID)
		return e.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_TypingAutoStop(t *testing.T) {
	url := startHub(t)
	a := dial(t, url, alice, Options{TypingIdle: 100 * time.Millisecond})
	b := dial(t, url, bob, Options{})
	waitOnline(t, a, alice, bob)
	waitOnline(t, b, alice, bob)

	require.NoError(t, a.StartTyping(bob))
	require.NoError(t, a.StartTyping(bob))

	require.Eventually(t, func() bool { return b.PeerTyping(alice) }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !b.PeerTyping(alice) }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_UnconfirmedSendFails(t *testing.T) {
	// a server that accepts frames and never answers
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	a := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"), alice, Options{
		PendingTimeout: 50 * time.Millisecond,
		SweepInterval:  10 * time.Millisecond,
	})

	sent, err := a.Send(bob, "hello?", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		e, _ := a.Timeline(bob).Lookup(sent.TempID)
		return e.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	retried, err := a.Retry(bob, sent.TempID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, retried.Status)
	assert.Equal(t, 1, a.Timeline(bob).Len())
}

func TestClient_DisconnectFailsPendingSends(t *testing.T) {
	// a server that takes the send and drops the socket without confirming
	got := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < 2; i++ { // register-session, send-message
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
		close(got)
	}))
	t.Cleanup(srv.Close)

	// the timeout is far away: only the disconnect can fail the entry
	a := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"), alice, Options{PendingTimeout: time.Hour})

	sent, err := a.Send(bob, "anyone?", "")
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("server never got the send")
	}
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the disconnect")
	}

	require.Eventually(t, func() bool {
		e, _ := a.Timeline(bob).Lookup(sent.TempID)
		return e.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	// retrying on a dead connection fails again instead of hanging in pending
	_, err = a.Retry(bob, sent.TempID)
	require.ErrorIs(t, err, ErrClosed)
	e, _ := a.Timeline(bob).Lookup(sent.TempID)
	assert.Equal(t, StatusFailed, e.Status)
}

func TestClient_CloseStopsWrites(t *testing.T) {
	url := startHub(t)
	a := dial(t, url, alice, Options{})

	require.NoError(t, a.Close())
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}

	_, err := a.Send(bob, "late", "")
	require.ErrorIs(t, err, ErrClosed)
}
