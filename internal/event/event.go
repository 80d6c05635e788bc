package event

import (
	"encoding/json"
	"fmt"
)

// Client to server
const (
	EventRegisterSession = "register-session"
	EventSendMessage     = "send-message"
	EventMarkSeen        = "mark-seen"
	EventTypingStart     = "typing-start"
	EventTypingStop      = "typing-stop"
)

// Server to client
const (
	EventMessageDelivered  = "message-delivered"
	EventSendConfirmed     = "send-confirmed"
	EventSeenUpdate        = "seen-update"
	EventPeerTyping        = "peer-typing"
	EventPeerStoppedTyping = "peer-stopped-typing"
	EventOnlineUsers       = "online-users"
	EventDeliveryError     = "delivery-error"
)

// WsEvent is the envelope of every frame exchanged over the socket.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New marshals payload into an event envelope.
func New(name string, payload any) (WsEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WsEvent{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return WsEvent{Event: name, Payload: raw}, nil
}

// Decode unmarshals the event payload into v.
func (ev WsEvent) Decode(v any) error {
	if len(ev.Payload) == 0 {
		return fmt.Errorf("event %s: empty payload", ev.Event)
	}
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("event %s: %w", ev.Event, err)
	}
	return nil
}
