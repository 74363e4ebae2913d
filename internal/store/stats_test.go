package store

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestStatsProviderCounts(t *testing.T) {
	users := &fakeCountCollection{count: 7}
	questions := &fakeCountCollection{count: 3}
	provider := NewStatsProvider(users, questions)

	ctx := context.Background()

	userCount, err := provider.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers returned error: %v", err)
	}
	if userCount != 7 {
		t.Fatalf("expected 7 users, got %d", userCount)
	}

	pending, err := provider.CountPendingQuestions(ctx)
	if err != nil {
		t.Fatalf("CountPendingQuestions returned error: %v", err)
	}
	if pending != 3 {
		t.Fatalf("expected 3 pending questions, got %d", pending)
	}

	filter, ok := questions.lastFilter.(bson.M)
	if !ok {
		t.Fatalf("unexpected questions filter type %T", questions.lastFilter)
	}
	if filter["answered"] != false {
		t.Fatalf("expected answered=false filter, got %v", filter)
	}
}

func TestStatsProviderPropagatesErrors(t *testing.T) {
	users := &fakeCountCollection{err: errors.New("count failed")}
	provider := NewStatsProvider(users, &fakeCountCollection{})

	if _, err := provider.CountUsers(context.Background()); err == nil {
		t.Fatalf("expected count error to propagate")
	}
}

type fakeCountCollection struct {
	count      int64
	err        error
	lastFilter interface{}
}

func (f *fakeCountCollection) CountDocuments(_ context.Context, filter interface{}, _ ...*options.CountOptions) (int64, error) {
	f.lastFilter = filter
	return f.count, f.err
}
