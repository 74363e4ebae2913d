package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cv_builder_bot/internal/domain"
)

type questionCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// QuestionRepository persists and retrieves submitted questions in MongoDB.
type QuestionRepository struct {
	collection questionCollection
}

// NewQuestionRepository constructs a QuestionRepository.
func NewQuestionRepository(collection questionCollection) *QuestionRepository {
	return &QuestionRepository{collection: collection}
}

// Insert stores a new question, defaulting answered=false and the creation
// timestamp.
func (r *QuestionRepository) Insert(ctx context.Context, question domain.Question) (domain.Question, error) {
	if r == nil || r.collection == nil {
		return domain.Question{}, errors.New("question repository is not initialized")
	}
	if ctx == nil {
		return domain.Question{}, errors.New("context is required")
	}
	if question.Text == "" {
		return domain.Question{}, errors.New("question text is required")
	}

	question.Answered = false
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	result, err := r.collection.InsertOne(ctx, question)
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question: %w", err)
	}

	if result != nil {
		if id, ok := result.InsertedID.(primitive.ObjectID); ok {
			question.ID = id
		}
	}

	return question, nil
}

// FindUnanswered returns up to limit unanswered questions, newest first.
func (r *QuestionRepository) FindUnanswered(ctx context.Context, limit int) ([]domain.Question, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("question repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be greater than 0")
	}

	cursor, err := r.collection.Find(ctx,
		bson.M{"answered": false},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("find unanswered questions: %w", err)
	}

	var questions []domain.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("decode unanswered questions: %w", err)
	}

	return questions, nil
}

// MarkAnswered records the answer for a question and flips the answered flag.
// This is the external admin mutation path; the dispatcher never calls it.
func (r *QuestionRepository) MarkAnswered(ctx context.Context, id, answer string) error {
	if r == nil || r.collection == nil {
		return errors.New("question repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"answered": true,
			"answer":   answer,
		}},
	)
	if err != nil {
		return fmt.Errorf("mark question answered: %w", err)
	}

	if result == nil || result.MatchedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}
