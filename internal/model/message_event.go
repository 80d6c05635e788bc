package model

import "time"

// RegisterSession binds a connection to a user identity
type RegisterSession struct {
	UserID string `json:"userId"`
}

// SendMessage is the client request to deliver a chat message
type SendMessage struct {
	SenderID     string `json:"senderId"`
	ReceiverID   string `json:"receiverId"`
	Text         string `json:"text,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ClientTempID string `json:"clientTempId"`
}

// SendConfirmed is pushed back to the sender once the message is persisted
type SendConfirmed struct {
	ServerID     string      `json:"serverId"`
	ClientTempID string      `json:"clientTempId"`
	Timestamp    time.Time   `json:"timestamp"`
	Seen         bool        `json:"seen"`
	Message      MessageView `json:"message"`
}

// MarkSeen - viewer has now seen every message from the other party
type MarkSeen struct {
	ViewerID     string `json:"viewerId"`
	OtherPartyID string `json:"otherPartyId"`
}

// SeenUpdate - read receipt pushed to the original sender
type SeenUpdate struct {
	ViewerID string `json:"viewerId"`
	Count    int64  `json:"count"`
}

// TypingIndicator - for typing status
type TypingIndicator struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PeerTyping is forwarded to the peer of a typing user
type PeerTyping struct {
	UserID string `json:"userId"`
}

// OnlineUsers is broadcast to every connection on presence changes
type OnlineUsers struct {
	Version uint64   `json:"version"`
	UserIDs []string `json:"userIds"`
}
