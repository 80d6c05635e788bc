package hub

import (
	"Promo/internal/event"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session states
const (
	StateConnecting = "connecting"
	StateRegistered = "registered"
	StateClosed     = "closed"
)

// Client is one live websocket connection. It moves Connecting -> Registered
// -> Closed; a closed client never registers again.
type Client struct {
	ID     string
	conn   *websocket.Conn
	hub    *Hub
	egress chan event.WsEvent

	// guarded by mu; the hub holds mu across presence mutations for this
	// client so a register can never land after the close
	mu     sync.Mutex
	state  string
	userID string

	ctx            context.Context
	cancel         context.CancelFunc
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	attached       chan struct{} // closed once the hub tracks this client
}

func newClient(conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:         uuid.New().String(),
		conn:       conn,
		hub:        h,
		egress:     make(chan event.WsEvent, h.opts.SendBufferSize),
		state:      StateConnecting,
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
		attached:   make(chan struct{}),
	}
}

// RegisterClient attaches a freshly upgraded connection to the hub and starts
// its pumps.
func RegisterClient(conn *websocket.Conn, h *Hub) *Client {
	client := newClient(conn, h)

	select {
	case h.register <- client:
		go client.ReadMessages()
		go client.WriteMessage()
		h.logger.Debug("connection attached", zap.String("client_id", client.ID))
		return client
	case <-time.After(registerTimeout):
		h.logger.Warn("failed to attach connection: timeout", zap.String("client_id", client.ID))
		client.Close()
		_ = conn.Close()
		return nil
	case <-h.ctx.Done():
		client.Close()
		_ = conn.Close()
		return nil
	}
}

func (c *Client) ReadMessages() {
	logger := c.hub.logger.With(zap.String("client_id", c.ID))

	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.Close()
	}()

	// frames read before the hub tracks c could register a session that
	// misses its own presence broadcast
	select {
	case <-c.attached:
	case <-c.ctx.Done():
		return
	case <-c.hub.ctx.Done():
		return
	}

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		var ev event.WsEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			switch {
			case websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			):
				logger.Debug("client disconnected")
			case isTimeout(err):
				// heartbeat failed: half-open connection
				logger.Info("client timed out - closing connection")
			case c.ctx.Err() != nil:
			default:
				logger.Warn("error reading from client", zap.Error(err))
			}
			return
		}

		if !c.hub.dispatch(c, ev) {
			logger.Warn("inbound queue full, dropping client")
			return
		}
	}
}

func (c *Client) WriteMessage() {
	ticker := time.NewTicker(c.hub.opts.pingInterval())

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.hub.opts.WriteWait))
			return
		case ev := <-c.egress:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.hub.logger.Debug("write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.hub.opts.WriteWait)); err != nil {
				c.hub.logger.Debug("ping failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
}

// SafeSend attempts to send an event to the client's egress channel.
// Returns true if sent successfully, false if client is closed or timeout.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-timer.C:
		return false
	}
}

// TrySend enqueues ev only if there is room right now.
func (c *Client) TrySend(ev event.WsEvent) bool {
	if c.IsClosed() {
		return false
	}
	select {
	case c.egress <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()

		// Wait for WriteMessage to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				if c.conn != nil {
					_ = c.conn.Close()
				}
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	return c.ctx.Err() != nil
}

func (c *Client) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
