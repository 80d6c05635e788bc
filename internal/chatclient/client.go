package chatclient

import (
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	typingIdle    = 1500 * time.Millisecond // auto typing-stop after this much silence
	sweepInterval = time.Second
	writeWait     = 10 * time.Second
	eventsBuffer  = 64
)

var ErrClosed = errors.New("chatclient: connection closed")

type Options struct {
	PendingTimeout time.Duration
	TypingIdle     time.Duration
	SweepInterval  time.Duration
	Dialer         *websocket.Dialer
}

// Client is one user's socket session. It keeps a Timeline per peer and
// applies every server event to it.
type Client struct {
	userID string
	conn   *websocket.Conn
	logger *zap.Logger
	opts   Options

	writeMu sync.Mutex

	mu        sync.Mutex
	timelines map[string]*Timeline
	typing    map[string]*time.Timer // peers we are typing to
	peerTyped map[string]bool        // peers typing to us
	online    []string
	onlineVer uint64

	events chan event.WsEvent
	done   chan struct{}
	once   sync.Once
}

// Dial connects to the socket server at url and registers the session as
// userID.
func Dial(ctx context.Context, url, userID string, logger *zap.Logger, opts Options) (*Client, error) {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := newClient(conn, userID, logger, opts)
	if err := c.write(event.EventRegisterSession, model.RegisterSession{UserID: userID}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.readLoop()
	go c.sweep()
	return c, nil
}

func newClient(conn *websocket.Conn, userID string, logger *zap.Logger, opts Options) *Client {
	if opts.TypingIdle <= 0 {
		opts.TypingIdle = typingIdle
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = sweepInterval
	}
	if opts.PendingTimeout <= 0 {
		opts.PendingTimeout = DefaultPendingTimeout
	}
	return &Client{
		userID:    userID,
		conn:      conn,
		logger:    logger,
		opts:      opts,
		timelines: make(map[string]*Timeline),
		typing:    make(map[string]*time.Timer),
		peerTyped: make(map[string]bool),
		events:    make(chan event.WsEvent, eventsBuffer),
		done:      make(chan struct{}),
	}
}

func (c *Client) UserID() string { return c.userID }

// Events yields every server event after it has been applied. Events are
// dropped when nobody reads them.
func (c *Client) Events() <-chan event.WsEvent { return c.events }

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Timeline returns the conversation with peerID, creating it on first use.
func (c *Client) Timeline(peerID string) *Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()

	tl, ok := c.timelines[peerID]
	if !ok {
		tl = NewTimeline(c.userID, peerID, WithPendingTimeout(c.opts.PendingTimeout))
		c.timelines[peerID] = tl
	}
	return tl
}

// Send renders the message optimistically and ships it. A write failure
// marks the entry failed right away.
func (c *Client) Send(peerID, text, image string) (Entry, error) {
	tl := c.Timeline(peerID)
	e := tl.AddPending(text, image)

	c.StopTyping(peerID)
	if err := c.writeSend(e); err != nil {
		tl.Fail(e.TempID)
		e.Status = StatusFailed
		return e, err
	}
	return e, nil
}

// Retry resends a failed entry under its original temp id.
func (c *Client) Retry(peerID, tempID string) (Entry, error) {
	tl := c.Timeline(peerID)
	e, err := tl.Retry(tempID)
	if err != nil {
		return Entry{}, err
	}
	if err := c.writeSend(e); err != nil {
		tl.Fail(tempID)
		return e, err
	}
	return e, nil
}

func (c *Client) writeSend(e Entry) error {
	return c.write(event.EventSendMessage, model.SendMessage{
		SenderID:     c.userID,
		ReceiverID:   e.ReceiverID,
		Text:         e.Text,
		ImageURL:     e.Image,
		ClientTempID: e.TempID,
	})
}

// MarkSeen tells the server the peer's messages have been viewed.
func (c *Client) MarkSeen(peerID string) error {
	if err := c.write(event.EventMarkSeen, model.MarkSeen{ViewerID: c.userID, OtherPartyID: peerID}); err != nil {
		return err
	}
	c.Timeline(peerID).AcknowledgePeer()
	return nil
}

// StartTyping sends typing-start on the first keystroke and re-arms the
// idle timer on each later one.
func (c *Client) StartTyping(peerID string) error {
	c.mu.Lock()
	if t, ok := c.typing[peerID]; ok {
		t.Reset(c.opts.TypingIdle)
		c.mu.Unlock()
		return nil
	}
	c.typing[peerID] = time.AfterFunc(c.opts.TypingIdle, func() { c.StopTyping(peerID) })
	c.mu.Unlock()

	return c.write(event.EventTypingStart, model.TypingIndicator{From: c.userID, To: peerID})
}

// StopTyping sends typing-stop if a typing-start is outstanding.
func (c *Client) StopTyping(peerID string) {
	c.mu.Lock()
	t, ok := c.typing[peerID]
	if ok {
		t.Stop()
		delete(c.typing, peerID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	if err := c.write(event.EventTypingStop, model.TypingIndicator{From: c.userID, To: peerID}); err != nil && !errors.Is(err, ErrClosed) {
		c.logger.Debug("typing-stop failed", zap.String("peer_id", peerID), zap.Error(err))
	}
}

// PeerTyping reports whether peerID is currently typing to us.
func (c *Client) PeerTyping(peerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyped[peerID]
}

// Online returns the latest online-users broadcast.
func (c *Client) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.online)
}

func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		for peer, t := range c.typing {
			t.Stop()
			delete(c.typing, peer)
		}
		c.mu.Unlock()

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *Client) write(name string, payload any) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	ev, err := event.New(name, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		// sends after this point fail on ErrClosed; sends before it can
		// no longer be confirmed
		close(c.done)
		c.eachTimeline(func(tl *Timeline) {
			for _, id := range tl.FailPending() {
				c.logger.Warn("send not confirmed before disconnect",
					zap.String("peer_id", tl.PeerID()),
					zap.String("client_temp_id", id),
				)
			}
		})
		_ = c.Close()
	}()

	for {
		var ev event.WsEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("connection lost", zap.Error(err))
			}
			return
		}

		if err := c.apply(ev); err != nil {
			c.logger.Warn("bad server event", zap.String("event", ev.Event), zap.Error(err))
			continue
		}

		select {
		case c.events <- ev:
		default:
		}
	}
}

// apply folds one server event into local state.
func (c *Client) apply(ev event.WsEvent) error {
	switch ev.Event {
	case event.EventSendConfirmed:
		var p model.SendConfirmed
		if err := ev.Decode(&p); err != nil {
			return err
		}
		if !c.confirm(p) {
			c.logger.Debug("unmatched confirmation", zap.String("client_temp_id", p.ClientTempID))
		}

	case event.EventMessageDelivered:
		var p model.MessageView
		if err := ev.Decode(&p); err != nil {
			return err
		}
		c.Timeline(p.Sender.ID).Deliver(p)

	case event.EventSeenUpdate:
		var p model.SeenUpdate
		if err := ev.Decode(&p); err != nil {
			return err
		}
		c.Timeline(p.ViewerID).PeerSaw()

	case event.EventDeliveryError:
		var p model.ErrorPayload
		if err := ev.Decode(&p); err != nil {
			return err
		}
		c.logger.Warn("delivery error", zap.String("code", p.Code), zap.String("reason", p.Reason))
		if p.ClientTempID != "" {
			c.eachTimeline(func(tl *Timeline) { tl.Fail(p.ClientTempID) })
		}

	case event.EventPeerTyping, event.EventPeerStoppedTyping:
		var p model.PeerTyping
		if err := ev.Decode(&p); err != nil {
			return err
		}
		c.mu.Lock()
		if ev.Event == event.EventPeerTyping {
			c.peerTyped[p.UserID] = true
		} else {
			delete(c.peerTyped, p.UserID)
		}
		c.mu.Unlock()

	case event.EventOnlineUsers:
		var p model.OnlineUsers
		if err := ev.Decode(&p); err != nil {
			return err
		}
		c.mu.Lock()
		if p.Version >= c.onlineVer {
			c.onlineVer = p.Version
			c.online = p.UserIDs
		}
		c.mu.Unlock()

	default:
		return fmt.Errorf("unknown event %q", ev.Event)
	}
	return nil
}

func (c *Client) confirm(p model.SendConfirmed) bool {
	var hit bool
	c.eachTimeline(func(tl *Timeline) {
		if _, ok := tl.Lookup(p.ClientTempID); ok {
			hit = tl.Confirm(p) || hit
		}
	})
	if hit {
		return true
	}
	if p.Message.Receiver.ID == "" {
		return false
	}
	return c.Timeline(p.Message.Receiver.ID).Confirm(p)
}

func (c *Client) eachTimeline(fn func(*Timeline)) {
	c.mu.Lock()
	tls := make([]*Timeline, 0, len(c.timelines))
	for _, tl := range c.timelines {
		tls = append(tls, tl)
	}
	c.mu.Unlock()

	for _, tl := range tls {
		fn(tl)
	}
}

// sweep fails pending entries whose confirmation never came.
func (c *Client) sweep() {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.eachTimeline(func(tl *Timeline) {
				for _, id := range tl.ExpirePending() {
					c.logger.Warn("send not confirmed in time",
						zap.String("peer_id", tl.PeerID()),
						zap.String("client_temp_id", id),
					)
				}
			})
		case <-c.done:
			return
		}
	}
}
