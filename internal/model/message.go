package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents a direct chat message in MongoDB
type Message struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SenderID   primitive.ObjectID `json:"senderId" bson:"senderId"`
	ReceiverID primitive.ObjectID `json:"receiverId" bson:"receiverId"`
	Text       string             `json:"text,omitempty" bson:"text,omitempty"`
	Image      string             `json:"image,omitempty" bson:"image,omitempty"`
	Seen       bool               `json:"seen" bson:"seen"`
	Timestamp  time.Time          `json:"timestamp" bson:"timestamp"`
}

// MessageView is a message joined with the display projections of both parties.
// It is what clients render, both for live events and history.
type MessageView struct {
	ID        string         `json:"id"`
	Sender    UserProjection `json:"sender"`
	Receiver  UserProjection `json:"receiver"`
	Text      string         `json:"text,omitempty"`
	Image     string         `json:"image,omitempty"`
	Seen      bool           `json:"seen"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewMessageView builds the client view of msg. Missing projections fall back
// to the bare user id.
func NewMessageView(msg Message, profiles map[string]UserProjection) MessageView {
	return MessageView{
		ID:        msg.ID.Hex(),
		Sender:    projectionOrID(profiles, msg.SenderID.Hex()),
		Receiver:  projectionOrID(profiles, msg.ReceiverID.Hex()),
		Text:      msg.Text,
		Image:     msg.Image,
		Seen:      msg.Seen,
		Timestamp: msg.Timestamp,
	}
}

func projectionOrID(profiles map[string]UserProjection, id string) UserProjection {
	if p, ok := profiles[id]; ok {
		return p
	}
	return UserProjection{ID: id}
}

// ErrorPayload represents an error response sent to client via WebSocket
type ErrorPayload struct {
	Code         string `json:"code"`
	Reason       string `json:"reason"`
	ClientTempID string `json:"clientTempId,omitempty"`
}
