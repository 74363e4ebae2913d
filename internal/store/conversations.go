package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cv_builder_bot/internal/domain"
)

type insertCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// ConversationLog appends (incoming, outgoing) pairs for audit. Write-only.
type ConversationLog struct {
	collection insertCollection
}

// NewConversationLog constructs a ConversationLog.
func NewConversationLog(collection insertCollection) *ConversationLog {
	return &ConversationLog{collection: collection}
}

// Append stores one exchange, defaulting the timestamp.
func (l *ConversationLog) Append(ctx context.Context, turn domain.ConversationTurn) error {
	if l == nil || l.collection == nil {
		return errors.New("conversation log is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := l.collection.InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("append conversation turn: %w", err)
	}

	return nil
}
