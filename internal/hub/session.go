package hub

import (
	"Promo/internal/event"
	"Promo/internal/model"
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	// a bad frame must never take a worker down with it
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				zap.String("client_id", c.ID),
				zap.String("event", ev.Event),
				zap.Any("panic", r),
			)
		}
	}()

	switch ev.Event {
	case event.EventRegisterSession:
		h.handleRegister(c, ev)
	case event.EventSendMessage:
		h.handleSendMessage(c, ev)
	case event.EventMarkSeen:
		h.handleMarkSeen(c, ev)
	case event.EventTypingStart:
		h.handleTyping(c, ev, true)
	case event.EventTypingStop:
		h.handleTyping(c, ev, false)
	default:
		h.logger.Warn("unknown event type",
			zap.String("client_id", c.ID),
			zap.String("event", ev.Event),
		)
	}
}

// -----------------------------------------------------------------
// Session lifecycle
// -----------------------------------------------------------------

func (h *Hub) handleRegister(c *Client, ev event.WsEvent) {
	userID, err := decodeUserID(ev)
	if err != nil || !IsValidIdentity(userID) {
		h.logger.Warn("invalid register-session",
			zap.String("client_id", c.ID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	snap, released := h.presence.Register(userID, c)
	c.userID = userID
	c.state = StateRegistered
	c.mu.Unlock()

	h.logger.Info("session registered",
		zap.String("client_id", c.ID),
		zap.String("user_id", userID),
	)

	if released != "" {
		h.clearTyping(released)
	}
	h.publishPresence(snap)
}

// closeSession moves c to Closed and tears down its presence and typing
// state. It does not cancel persistence already in flight for c.
func (h *Hub) closeSession(c *Client) {
	c.mu.Lock()
	c.state = StateClosed
	snap, userID, removed := h.presence.Deregister(c)
	c.mu.Unlock()

	if !removed {
		// never registered, or superseded by a newer connection
		return
	}

	h.logger.Info("session closed",
		zap.String("client_id", c.ID),
		zap.String("user_id", userID),
	)

	h.publishPresence(snap)
	h.clearTyping(userID)
}

// decodeUserID accepts both a bare JSON string and {"userId": "..."}.
func decodeUserID(ev event.WsEvent) (string, error) {
	var id string
	if err := json.Unmarshal(ev.Payload, &id); err == nil {
		return id, nil
	}

	var reg model.RegisterSession
	if err := ev.Decode(&reg); err != nil {
		return "", err
	}
	return reg.UserID, nil
}

// sessionIdentity resolves the identity an event claims against the identity
// the connection registered with. An empty claim means the session user.
func (h *Hub) sessionIdentity(c *Client, claimed string, ev event.WsEvent) (string, error) {
	userID := c.UserID()
	if userID == "" {
		h.logger.Warn("event before register-session",
			zap.String("client_id", c.ID),
			zap.String("event", ev.Event),
		)
		return "", ErrNotRegistered
	}
	if claimed != "" && claimed != userID {
		h.logger.Warn("event identity does not match session",
			zap.String("client_id", c.ID),
			zap.String("event", ev.Event),
			zap.String("user_id", userID),
			zap.String("claimed", claimed),
		)
		return "", ErrSenderMismatch
	}
	return userID, nil
}

// -----------------------------------------------------------------
// Event handlers
// -----------------------------------------------------------------

func (h *Hub) handleSendMessage(c *Client, ev event.WsEvent) {
	var req model.SendMessage
	if err := ev.Decode(&req); err != nil {
		h.logger.Warn("malformed send-message", zap.String("client_id", c.ID), zap.Error(err))
		h.sendError(c, &DeliveryError{Code: CodeInvalidPayload, Err: err})
		return
	}

	sender, err := h.sessionIdentity(c, req.SenderID, ev)
	if err != nil {
		if errors.Is(err, ErrSenderMismatch) {
			h.sendError(c, &DeliveryError{Code: CodeSenderMismatch, ClientTempID: req.ClientTempID, Err: err})
		}
		return
	}
	req.SenderID = sender

	// persistence outlives the connection: an accepted message is stored even
	// if the sender disconnects right after
	_, _ = h.pipeline.Deliver(context.Background(), c, req)
}

func (h *Hub) handleMarkSeen(c *Client, ev event.WsEvent) {
	var req model.MarkSeen
	if err := ev.Decode(&req); err != nil {
		h.logger.Warn("malformed mark-seen", zap.String("client_id", c.ID), zap.Error(err))
		return
	}

	viewer, err := h.sessionIdentity(c, req.ViewerID, ev)
	if err != nil {
		return
	}

	if _, err := h.seen.Reconcile(context.Background(), viewer, req.OtherPartyID); err != nil {
		h.logger.Warn("mark-seen failed",
			zap.String("viewer_id", viewer),
			zap.String("other_party_id", req.OtherPartyID),
			zap.Error(err),
		)
	}
}

func (h *Hub) handleTyping(c *Client, ev event.WsEvent, start bool) {
	var req model.TypingIndicator
	if err := ev.Decode(&req); err != nil {
		h.logger.Debug("malformed typing event", zap.String("client_id", c.ID), zap.Error(err))
		return
	}

	from, err := h.sessionIdentity(c, req.From, ev)
	if err != nil {
		return
	}
	if !IsValidIdentity(req.To) {
		h.logger.Debug("typing event with invalid peer", zap.String("to", req.To))
		return
	}

	if start {
		h.typing.Start(from, req.To)
		h.notifyUser(req.To, event.EventPeerTyping, model.PeerTyping{UserID: from})
		return
	}

	if h.typing.Stop(from, req.To) {
		h.notifyUser(req.To, event.EventPeerStoppedTyping, model.PeerTyping{UserID: from})
	}
}

// clearTyping treats every active typing entry of userID as an implicit stop.
func (h *Hub) clearTyping(userID string) {
	for _, peer := range h.typing.Clear(userID) {
		h.notifyUser(peer, event.EventPeerStoppedTyping, model.PeerTyping{UserID: userID})
	}
}

// notifyUser pushes an event to userID if it is reachable. Delivery is
// bounded by PushTimeout; a miss is not an error.
func (h *Hub) notifyUser(userID, name string, payload any) bool {
	c, ok := h.presence.Lookup(userID)
	if !ok {
		return false
	}

	ev, err := event.New(name, payload)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("event", name), zap.Error(err))
		return false
	}

	if !c.SafeSend(ev, h.opts.PushTimeout) {
		h.logger.Warn("live push dropped",
			zap.String("event", name),
			zap.String("user_id", userID),
			zap.String("client_id", c.ID),
		)
		return false
	}
	return true
}

func (h *Hub) sendError(c *Client, derr *DeliveryError) {
	emitError(h.logger, c, derr, h.opts.SendTimeout)
}
