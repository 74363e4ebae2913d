package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes record counts for basic diagnostics without leaking
// MongoDB internals to callers.
type StatsProvider struct {
	users     countCollection
	questions countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the provided user and
// question collections.
func NewStatsProvider(users, questions countCollection) *StatsProvider {
	return &StatsProvider{
		users:     users,
		questions: questions,
	}
}

// CountUsers returns the number of CV reservations.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

// CountPendingQuestions returns the number of unanswered questions.
func (p *StatsProvider) CountPendingQuestions(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.questions == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.questions.CountDocuments(ctx, bson.M{"answered": false})
	if err != nil {
		return 0, fmt.Errorf("count pending questions: %w", err)
	}

	return count, nil
}
