package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Question is a free-form question submitted through the /question command.
type Question struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	AskerID   string             `bson:"asker_id" json:"asker_id"`
	Text      string             `bson:"text" json:"text"`
	Answer    string             `bson:"answer,omitempty" json:"answer,omitempty"`
	Answered  bool               `bson:"answered" json:"answered"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// ConversationTurn is one (incoming, outgoing) exchange kept for audit.
type ConversationTurn struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	ConversationID string             `bson:"conversation_id" json:"conversation_id"`
	Incoming       string             `bson:"incoming" json:"incoming"`
	Outgoing       string             `bson:"outgoing" json:"outgoing"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}
