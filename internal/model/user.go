package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleBusiness   = "business"
	RoleInfluencer = "influencer"
)

// User represents a user document in MongoDB. Only the fields the messaging
// subsystem reads are mapped; the rest of the document is owned elsewhere.
type User struct {
	ID             primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	Name           string               `json:"name" bson:"name"`
	Email          string               `json:"email" bson:"email"`
	Role           string               `json:"role" bson:"role"`
	ProfilePicture string               `json:"profilePicture" bson:"profilePicture"`
	CompanyName    string               `json:"companyName,omitempty" bson:"companyName,omitempty"`
	Connections    []primitive.ObjectID `json:"connections,omitempty" bson:"connections,omitempty"`
	CreatedAt      time.Time            `json:"createdAt" bson:"createdAt"`
}

// UserProjection is the minimal display data a chat client needs per party.
type UserProjection struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Projection returns the display projection of u.
func (u User) Projection() UserProjection {
	return UserProjection{
		ID:     u.ID.Hex(),
		Name:   u.Name,
		Avatar: u.ProfilePicture,
	}
}
